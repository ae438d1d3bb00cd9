package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadSet reads the three schema documents from disk. Any read, decode, or
// unknown-type failure is returned as an error; the caller treats it as fatal
// at startup.
func LoadSet(renamePath, fixedPath, descriptivePath string) (Set, error) {
	rename, err := loadRename(renamePath)
	if err != nil {
		return Set{}, fmt.Errorf("load rename map: %w", err)
	}
	fixed, err := loadSchemaFile(fixedPath)
	if err != nil {
		return Set{}, fmt.Errorf("load fixed schema: %w", err)
	}
	descriptive, err := loadSchemaFile(descriptivePath)
	if err != nil {
		return Set{}, fmt.Errorf("load descriptive schema: %w", err)
	}
	for _, c := range descriptive.Columns() {
		switch c.Type {
		case String, Float, Boolean, Date:
		default:
			return Set{}, fmt.Errorf("load descriptive schema: column %q: type %s not allowed in descriptive schema", c.Name, c.Type)
		}
	}
	return Set{Rename: rename, Fixed: fixed, Descriptive: descriptive}, nil
}

func loadRename(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func loadSchemaFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := DecodeSchema(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DecodeSchema decodes a JSON object of column name -> type string into a
// Schema. Decoding walks the token stream rather than unmarshaling into a map
// so that the file's key order is preserved; diagnostic ordering and snapshot
// column layout both depend on it.
func DecodeSchema(r io.Reader) (*Schema, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("schema document must be a JSON object, got %v", tok)
	}

	var columns []Column
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", keyTok)
		}
		var typeName string
		if err := dec.Decode(&typeName); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		t, err := ParseFieldType(typeName)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		columns = append(columns, Column{Name: name, Type: t})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return New(columns)
}
