// Package sqlite implements the store contract on SQLite via database/sql.
// It serves the local relational mode: same conflict semantics as the
// Postgres sink (INSERT OR IGNORE counts duplicates as conflicts), with
// rowid preserving append order for snapshot loads.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"importer/internal/schema"
	"importer/internal/store"
	"importer/internal/version"
	"importer/pkg/records"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is passed to database/sql, e.g. "file:records.db" or ":memory:".
	DSN string
	// Table is the target table name.
	Table string
	// Columns are the fixed columns persisted per row, in order.
	Columns []string
}

// Store is a SQLite-backed store.Repository.
type Store struct {
	db  *sql.DB
	cfg Config
}

var _ store.Repository = (*Store)(nil)

// New opens the database, ensures the target table exists, and returns the
// Store plus a close function.
func New(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, errors.New("sqlite: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, errors.New("sqlite: table must not be empty")
	}
	if len(cfg.Columns) == 0 {
		return nil, nil, errors.New("sqlite: at least one fixed column required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.ensureTable(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, func() { db.Close() }, nil
}

// ensureTable creates the target table when absent. The unique index over
// the identity columns plus the version stamp is what turns a replayed batch
// into conflicts instead of duplicate history.
func (s *Store) ensureTable(ctx context.Context) error {
	defs := make([]string, 0, len(s.cfg.Columns)+2)
	for _, col := range s.cfg.Columns {
		defs = append(defs, fmt.Sprintf("%q TEXT", col))
	}
	defs = append(defs, fmt.Sprintf("%q TEXT NOT NULL", schema.BagColumn), `"version" TEXT NOT NULL`)

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", s.cfg.Table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("sqlite: create table: %w", err)
	}

	index := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %q ON %q (%q, %q, %q, %q)",
		s.cfg.Table+"_identity_version", s.cfg.Table,
		schema.IDTypeColumn, schema.IDValueColumn, schema.ProductColumn, "version",
	)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("sqlite: create index: %w", err)
	}
	return nil
}

func (s *Store) allColumns() []string {
	cols := make([]string, 0, len(s.cfg.Columns)+2)
	cols = append(cols, s.cfg.Columns...)
	cols = append(cols, schema.BagColumn, "version")
	return cols
}

// Snapshot loads the full prior state in rowid order, which is append order.
func (s *Store) Snapshot(ctx context.Context) ([]version.Record, error) {
	cols := s.allColumns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	query := fmt.Sprintf("SELECT %s FROM %q ORDER BY rowid", strings.Join(quoted, ", "), s.cfg.Table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: snapshot query: %w", err)
	}
	defer rows.Close()

	var out []version.Record
	for rows.Next() {
		dest := make([]any, len(cols))
		fixedVals := make([]sql.NullString, len(s.cfg.Columns))
		for i := range s.cfg.Columns {
			dest[i] = &fixedVals[i]
		}
		var bagRaw, stampRaw string
		dest[len(cols)-2] = &bagRaw
		dest[len(cols)-1] = &stampRaw

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: snapshot scan: %w", err)
		}

		fixed := make(records.Record, len(s.cfg.Columns))
		for i, col := range s.cfg.Columns {
			if !fixedVals[i].Valid {
				fixed[col] = nil
				continue
			}
			fixed[col] = fixedVals[i].String
		}
		bag := map[string]any{}
		if err := json.Unmarshal([]byte(bagRaw), &bag); err != nil {
			return nil, fmt.Errorf("sqlite: decode %s: %w", schema.BagColumn, err)
		}
		stamp, err := time.Parse(time.RFC3339Nano, stampRaw)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode version: %w", err)
		}
		out = append(out, version.Record{Fixed: fixed, Bag: bag, Version: stamp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: snapshot rows: %w", err)
	}
	return out, nil
}

// Insert writes records inside one transaction with INSERT OR IGNORE;
// ignored rows are counted as conflicts. Any other error rolls back and
// aborts the batch.
func (s *Store) Insert(ctx context.Context, recs []version.Record) (store.Result, error) {
	var res store.Result
	if len(recs) == 0 {
		return res, nil
	}

	cols := s.allColumns()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf(
		"INSERT OR IGNORE INTO %q (%s) VALUES (%s)",
		s.cfg.Table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return res, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		args := make([]any, 0, len(cols))
		for _, col := range s.cfg.Columns {
			args = append(args, rec.Fixed[col])
		}
		bag, err := json.Marshal(rec.Bag)
		if err != nil {
			_ = tx.Rollback()
			return res, fmt.Errorf("sqlite: encode %s: %w", schema.BagColumn, err)
		}
		args = append(args, string(bag), rec.Version.Format(time.RFC3339Nano))

		sqlRes, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			_ = tx.Rollback()
			return res, fmt.Errorf("sqlite: insert: %w", err)
		}
		n, err := sqlRes.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return res, fmt.Errorf("sqlite: rows affected: %w", err)
		}
		if n == 0 {
			res.Conflicts++
			continue
		}
		res.Inserted += n
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("sqlite: commit: %w", err)
	}
	return res, nil
}
