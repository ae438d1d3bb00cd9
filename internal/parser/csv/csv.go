// Package csv implements the CSV table parser. It reads the whole input as
// one header row plus data rows; a UTF-8 BOM on the first header cell is
// stripped, rows narrower than the header leave the missing columns nil.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"importer/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Options configures the CSV parser. Zero values get sensible defaults.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims leading/trailing spaces from every cell.
	TrimSpace bool
}

// Parser parses CSV input according to Options. A Parser is reusable across
// inputs but not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser {
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	return &Parser{opt: opt}
}

// Parse reads all rows from r. The first row is the header; each data row
// becomes a record keyed by header name. Empty cells decode as nil. A read
// error fails the whole file; the caller treats it as unreadable.
//
// Blank lines are skipped by the reader, so each record's physical line is
// taken from FieldPos rather than counted; diagnostics downstream keep
// naming the line the user sees in the file.
func (p *Parser) Parse(r io.Reader) ([]records.Record, []int, error) {
	cr := csv.NewReader(r)
	cr.Comma = p.opt.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("csv: empty input")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}
	header = stripHeaderBOM(header)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []records.Record
	var rows []int
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.ParseError already names the line.
			return nil, nil, fmt.Errorf("csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec := make(records.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if p.opt.TrimSpace {
				cell = strings.TrimSpace(cell)
			}
			if cell == "" {
				rec[col] = nil
				continue
			}
			rec[col] = cell
		}
		out = append(out, rec)
		rows = append(rows, line)
	}
	return out, rows, nil
}

// stripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func stripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}
