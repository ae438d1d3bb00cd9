// Package csvfile implements the local/versioned storage mode: a flat CSV
// export where each row holds the fixed columns, the descriptive bag encoded
// as JSON, and the version stamp. Re-parsing the bag on load reconstructs the
// original mapping exactly, and file order is append order, so a snapshot
// round-trips losslessly.
package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"importer/internal/schema"
	"importer/internal/store"
	"importer/internal/version"
	"importer/pkg/records"
)

// versionColumn is the trailing stamp column appended after the fixed columns
// and the bag.
const versionColumn = "version"

// Config configures the CSV store.
type Config struct {
	// Path is the snapshot file. A missing file is an empty store.
	Path string

	// Columns are the fixed columns persisted per row, in order. The bag
	// column and the version stamp are appended automatically and must not
	// be listed.
	Columns []string
}

// Store is a CSV-file-backed store.Repository.
type Store struct {
	cfg Config
}

var _ store.Repository = (*Store)(nil)

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("csvfile: path must not be empty")
	}
	if len(cfg.Columns) == 0 {
		return nil, errors.New("csvfile: at least one fixed column required")
	}
	for _, c := range cfg.Columns {
		if c == schema.BagColumn || c == versionColumn {
			return nil, fmt.Errorf("csvfile: column %q is reserved", c)
		}
	}
	return &Store{cfg: cfg}, nil
}

// header returns the full CSV header: fixed columns, bag, version.
func (s *Store) header() []string {
	h := make([]string, 0, len(s.cfg.Columns)+2)
	h = append(h, s.cfg.Columns...)
	h = append(h, schema.BagColumn, versionColumn)
	return h
}

// Snapshot reads the whole snapshot file in append order.
func (s *Store) Snapshot(ctx context.Context) ([]version.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvfile: open snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(s.cfg.Columns) + 2

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvfile: read header: %w", err)
	}
	if len(header) != len(s.cfg.Columns)+2 {
		return nil, fmt.Errorf("csvfile: snapshot header has %d columns, want %d", len(header), len(s.cfg.Columns)+2)
	}

	var out []version.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvfile: line %d: %w", line, err)
		}
		rec, err := s.decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("csvfile: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) decodeRow(row []string) (version.Record, error) {
	fixed := make(records.Record, len(s.cfg.Columns))
	for i, col := range s.cfg.Columns {
		if row[i] == "" {
			fixed[col] = nil
			continue
		}
		fixed[col] = row[i]
	}

	var bag map[string]any
	if err := json.Unmarshal([]byte(row[len(s.cfg.Columns)]), &bag); err != nil {
		return version.Record{}, fmt.Errorf("decode %s: %w", schema.BagColumn, err)
	}
	if bag == nil {
		bag = map[string]any{}
	}

	stamp, err := time.Parse(time.RFC3339Nano, row[len(s.cfg.Columns)+1])
	if err != nil {
		return version.Record{}, fmt.Errorf("decode %s: %w", versionColumn, err)
	}
	return version.Record{Fixed: fixed, Bag: bag, Version: stamp}, nil
}

func (s *Store) encodeRow(rec version.Record) ([]string, error) {
	row := make([]string, 0, len(s.cfg.Columns)+2)
	for _, col := range s.cfg.Columns {
		v := rec.Fixed[col]
		if v == nil {
			row = append(row, "")
			continue
		}
		if str, ok := v.(string); ok {
			row = append(row, str)
			continue
		}
		row = append(row, fmt.Sprint(v))
	}
	bag, err := json.Marshal(rec.Bag)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", schema.BagColumn, err)
	}
	row = append(row, string(bag), rec.Version.Format(time.RFC3339Nano))
	return row, nil
}

// Insert appends records to the snapshot file, writing the header first when
// the file is new. The versioning model is append-only, so a CSV store never
// reports conflicts.
func (s *Store) Insert(ctx context.Context, recs []version.Record) (store.Result, error) {
	var res store.Result
	if len(recs) == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	info, err := os.Stat(s.cfg.Path)
	fresh := errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("csvfile: stat snapshot: %w", err)
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return res, fmt.Errorf("csvfile: open snapshot for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(s.header()); err != nil {
			return res, fmt.Errorf("csvfile: write header: %w", err)
		}
	}
	for _, rec := range recs {
		row, err := s.encodeRow(rec)
		if err != nil {
			return res, err
		}
		if err := w.Write(row); err != nil {
			return res, fmt.Errorf("csvfile: write row: %w", err)
		}
		res.Inserted++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return res, fmt.Errorf("csvfile: flush: %w", err)
	}
	return res, nil
}
