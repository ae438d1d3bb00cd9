package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"importer/internal/schema"
	"importer/pkg/records"
)

// ErrorKind classifies a row-level validation failure.
type ErrorKind string

const (
	// KindMissingValue flags a required fixed column that is nil or absent.
	KindMissingValue ErrorKind = "missing_value"
	// KindInvalidDate flags a non-nil value in a date column that does not
	// parse as a date.
	KindInvalidDate ErrorKind = "invalid_date_format"
	// KindInvalidType flags a bag entry whose value does not match its
	// declared descriptive type.
	KindInvalidType ErrorKind = "invalid_type"
	// KindMalformedBag flags a row whose bag column is not a mapping.
	KindMalformedBag ErrorKind = "not_a_valid_json_object"
)

// Diagnostic pinpoints one validation failure. Row is 1-based and counts the
// header row, so the first data row is 2, matching how the row shows up in a
// spreadsheet program.
type Diagnostic struct {
	Row    int
	Column string
	Kind   ErrorKind
	Value  any
}

// String renders the diagnostic the way it appears in error reports.
func (d Diagnostic) String() string {
	switch d.Kind {
	case KindMissingValue:
		return fmt.Sprintf("Row %d: missing value in required fixed column %q.", d.Row, d.Column)
	case KindInvalidDate:
		return fmt.Sprintf("Row %d: column %q has invalid date format. Value is %q.", d.Row, d.Column, AsString(d.Value))
	case KindInvalidType:
		return fmt.Sprintf("Row %d: column %q has invalid type. Value is %q.", d.Row, d.Column, AsString(d.Value))
	case KindMalformedBag:
		return fmt.Sprintf("Row %d: %q is not a valid JSON object.", d.Row, schema.BagColumn)
	}
	return fmt.Sprintf("Row %d: column %q: %s.", d.Row, d.Column, d.Kind)
}

// Rejected carries a failed row: its spreadsheet row number, the original
// un-normalized row snapshot for human triage, and the ordered diagnostics.
type Rejected struct {
	Row   int
	Raw   records.Record
	Diags []Diagnostic
}

// Result partitions one file's rows.
type Result struct {
	Accepted []records.Record
	Rejected []Rejected
}

// boolTokens is the accepted truthy/falsy vocabulary for boolean attributes,
// compared case-insensitively. Polish tak/nie alongside the English pair.
var boolTokens = map[string]struct{}{
	"true": {}, "false": {},
	"tak": {}, "nie": {},
	"yes": {}, "no": {},
	"1": {}, "0": {},
}

// Validate checks each structured row against the fixed and descriptive
// schemas and partitions rows into accepted and rejected. structured and raw
// run in parallel: raw[i] is the un-normalized snapshot of structured[i] and
// is preserved verbatim in rejections. rows carries the physical spreadsheet
// row of each record as reported by the parser, so numbering stays correct
// when the input has blank rows; a nil rows numbers sequentially from 2.
// Rows are checked independently; a malformed row never prevents the rest of
// the file from being validated.
func Validate(structured, raw []records.Record, rows []int, fixed *schema.Schema, descriptive *schema.Schema) Result {
	var res Result
	for i, rec := range structured {
		rowNum := i + 2 // 1-based with a leading header row
		if i < len(rows) {
			rowNum = rows[i]
		}
		diags := validateRow(rowNum, rec, fixed, descriptive)
		if len(diags) == 0 {
			res.Accepted = append(res.Accepted, rec)
			continue
		}
		snapshot := records.Record{}
		if i < len(raw) {
			snapshot = raw[i]
		}
		res.Rejected = append(res.Rejected, Rejected{Row: rowNum, Raw: snapshot, Diags: diags})
	}
	return res
}

func validateRow(rowNum int, rec records.Record, fixed *schema.Schema, descriptive *schema.Schema) []Diagnostic {
	var diags []Diagnostic

	// Fixed columns: presence for everything except the sentinel types and
	// the login audit column, then a date parse for date-typed columns.
	for _, col := range fixed.Columns() {
		if col.Type == schema.OpaqueBag || col.Type == schema.Timestamp || col.Name == schema.LoginColumn {
			continue
		}
		v, ok := rec[col.Name]
		if !ok || v == nil {
			diags = append(diags, Diagnostic{Row: rowNum, Column: col.Name, Kind: KindMissingValue})
			continue
		}
		if col.Type == schema.Date && !parseableDate(v) {
			diags = append(diags, Diagnostic{Row: rowNum, Column: col.Name, Kind: KindInvalidDate, Value: v})
		}
	}

	// Descriptive bag. A non-mapping bag flags the whole row once and skips
	// the per-entry checks.
	bagValue, ok := rec[schema.BagColumn]
	if !ok {
		bagValue = map[string]any{}
	}
	bag, isMap := bagValue.(map[string]any)
	if !isMap {
		diags = append(diags, Diagnostic{Row: rowNum, Column: schema.BagColumn, Kind: KindMalformedBag, Value: bagValue})
		return diags
	}

	// Iterate in descriptive-schema order so diagnostics are deterministic.
	// Bag keys outside the schema are ignored; the reshaper already excludes
	// them, but stray keys must not become errors here either.
	for _, col := range descriptive.Columns() {
		v, present := bag[col.Name]
		if !present || v == nil {
			continue
		}
		if !validValue(v, col.Type) {
			diags = append(diags, Diagnostic{Row: rowNum, Column: col.Name, Kind: KindInvalidType, Value: v})
		}
	}
	return diags
}

// validValue type-checks one bag entry against its declared type.
func validValue(v any, t schema.FieldType) bool {
	switch t {
	case schema.Boolean:
		if _, isBool := v.(bool); isBool {
			return true
		}
		_, ok := boolTokens[strings.ToLower(AsString(v))]
		return ok
	case schema.Float:
		switch v.(type) {
		case float64, float32, int, int32, int64, bool:
			return true
		case string:
			_, err := strconv.ParseFloat(strings.TrimSpace(v.(string)), 64)
			return err == nil
		}
		return false
	case schema.String:
		_, ok := v.(string)
		return ok
	case schema.Date:
		return parseableDate(v)
	}
	return false
}

// dateLayouts are the accepted date renderings, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"2006/01/02",
}

func parseableDate(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	}
	return false
}

// ParseDate parses v with the same layouts the validator accepts. ok is false
// when v is not a date.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// AsString renders common value types without fmt overhead; uncommon types
// fall back to fmt.Sprint.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
