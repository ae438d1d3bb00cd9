// Package xlsx implements the spreadsheet table parser on top of excelize.
// The first sheet is read as one header row plus data rows; empty cells
// decode as nil and fully empty rows are skipped.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"importer/pkg/records"
)

// Parser reads .xlsx content. Stateless and reusable.
type Parser struct{}

// NewParser constructs a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse reads the first sheet of the workbook in r. A corrupt or unreadable
// workbook fails the whole file; the caller treats it as unreadable and
// quarantines it.
//
// Empty rows are skipped but keep their place in the numbering: the returned
// row numbers are the physical sheet rows, so diagnostics downstream name
// the row the user sees in the spreadsheet.
func (p *Parser) Parse(r io.Reader) ([]records.Record, []int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("xlsx: read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("xlsx: sheet %q is empty", sheets[0])
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []records.Record
	var nums []int
	for i, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		rec := make(records.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if cell == "" {
				rec[col] = nil
				continue
			}
			rec[col] = cell
		}
		out = append(out, rec)
		nums = append(nums, i+2)
	}
	return out, nums, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
