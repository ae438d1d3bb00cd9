// Package parser turns raw table bytes into records keyed by source column
// name. Concrete formats live in subpackages; ForFile picks one by extension.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"importer/internal/parser/csv"
	"importer/internal/parser/xlsx"
	"importer/pkg/records"
)

// Parser reads one file's content into raw records. The first row is the
// header; empty cells decode as nil so that downstream null handling is
// uniform across formats. rows[i] is the physical 1-based row of records[i]
// as a spreadsheet program displays it; blank rows in the input leave gaps
// in the numbering, never shifts.
type Parser interface {
	Parse(r io.Reader) (recs []records.Record, rows []int, err error)
}

// ForFile selects a parser by file extension. An unsupported extension is an
// error; the caller quarantines the file.
func ForFile(name string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return xlsx.NewParser(), nil
	case ".csv":
		return csv.NewParser(csv.Options{}), nil
	}
	return nil, fmt.Errorf("parser: unsupported file type %q", filepath.Ext(name))
}
