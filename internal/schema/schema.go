// Package schema models the three schema artifacts the importer is driven by:
// a column rename mapping, the fixed-column schema, and the descriptive-data
// schema. Column types form a closed enumeration so that an unrecognized type
// string in a schema file fails at load time instead of silently falling
// through during validation.
package schema

import (
	"fmt"
	"strings"
)

// Well-known column names and values.
const (
	// BagColumn is the synthesized column holding the descriptive bag.
	BagColumn = "dane_opisowe"

	// LoginColumn is the audit column maintained outside the input files;
	// it is never required of a row.
	LoginColumn = "login"

	// ProductColumn scopes a record to one insurance product.
	ProductColumn = "product"

	// ProductAll is the sentinel product for records not scoped to one
	// product category.
	ProductAll = "all"

	// Identity key columns.
	IDTypeColumn  = "id_type"
	IDValueColumn = "id_value"
)

// FieldType is the closed set of column types the importer understands.
type FieldType int

const (
	// String accepts textual values only; no coercion is attempted.
	String FieldType = iota
	// Float accepts any numeric-coercible value.
	Float
	// Boolean accepts native booleans and a fixed token vocabulary.
	Boolean
	// Date accepts date-parseable values.
	Date
	// OpaqueBag marks the jsonb column holding the descriptive bag; the
	// row validator skips it when checking fixed columns.
	OpaqueBag
	// Timestamp marks an audit timestamp maintained by the database; it is
	// never required of a row.
	Timestamp
)

// String returns the canonical lowercase name of the type.
func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case OpaqueBag:
		return "jsonb"
	case Timestamp:
		return "timestamp"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// ParseFieldType maps a schema-file type string onto a FieldType. Both the
// descriptive vocabulary (boolean/float/string/date) and the SQL-ish fixed
// vocabulary (VARCHAR/DATETIME/jsonb/TIMESTAMP) are accepted. Unknown strings
// are an error; schema load is fatal at startup, so a typo cannot degrade
// into skipped validation.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text", "varchar":
		return String, nil
	case "float", "real", "numeric", "double":
		return Float, nil
	case "boolean", "bool":
		return Boolean, nil
	case "date", "datetime":
		return Date, nil
	case "jsonb":
		return OpaqueBag, nil
	case "timestamp", "timestamptz":
		return Timestamp, nil
	}
	return 0, fmt.Errorf("schema: unknown field type %q", s)
}

// Column is one declared column of a schema.
type Column struct {
	Name string
	Type FieldType
}

// Schema is an ordered set of declared columns. Order follows the schema
// file, which keeps diagnostics and snapshot exports deterministic.
type Schema struct {
	columns []Column
	index   map[string]FieldType
}

// New builds a Schema from columns in declaration order. Duplicate names are
// an error.
func New(columns []Column) (*Schema, error) {
	s := &Schema{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]FieldType, len(columns)),
	}
	for _, c := range columns {
		if _, dup := s.index[c.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate column %q", c.Name)
		}
		s.columns = append(s.columns, c)
		s.index[c.Name] = c.Type
	}
	return s, nil
}

// Columns returns the declared columns in declaration order. The returned
// slice must not be mutated.
func (s *Schema) Columns() []Column { return s.columns }

// Type reports the declared type of name and whether name is declared.
func (s *Schema) Type(name string) (FieldType, bool) {
	t, ok := s.index[name]
	return t, ok
}

// Has reports whether name is a declared column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of declared columns.
func (s *Schema) Len() int { return len(s.columns) }

// Names returns the declared column names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// Set bundles the three schema artifacts loaded at startup.
type Set struct {
	// Rename maps source column names to canonical names.
	Rename map[string]string
	// Fixed declares the identity/core columns kept top-level.
	Fixed *Schema
	// Descriptive declares the attribute-bag columns.
	Descriptive *Schema
}
