// Package postgres implements the relational sink using pgx v5. Records are
// inserted with ON CONFLICT DO NOTHING so that a duplicate identity+version
// is downgraded to a counted conflict; every other write failure aborts the
// remaining batch.
//
// The target table carries the fixed columns, a jsonb bag column, a
// timestamptz version column, and a bigserial id that preserves append order
// for snapshot loads.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"importer/internal/schema"
	"importer/internal/store"
	"importer/internal/version"
	"importer/pkg/records"
)

// Config holds Postgres repository configuration.
type Config struct {
	// DSN is the pgxpool connection string.
	DSN string
	// Table is the fully qualified target table, e.g. "public.identity_records".
	Table string
	// Columns are the fixed columns persisted per row, in order; the bag and
	// version columns are appended automatically.
	Columns []string
	// IDColumn orders snapshot loads; it defaults to "id".
	IDColumn string
}

// Store is a Postgres-backed store.Repository.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
}

var _ store.Repository = (*Store)(nil)

// New connects a pool and returns the Store plus a close function.
func New(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, errors.New("postgres: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, errors.New("postgres: table must not be empty")
	}
	if len(cfg.Columns) == 0 {
		return nil, nil, errors.New("postgres: at least one fixed column required")
	}
	if cfg.IDColumn == "" {
		cfg.IDColumn = "id"
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	return &Store{pool: pool, cfg: cfg}, pool.Close, nil
}

// allColumns returns the persisted columns: fixed, bag, version.
func (s *Store) allColumns() []string {
	cols := make([]string, 0, len(s.cfg.Columns)+2)
	cols = append(cols, s.cfg.Columns...)
	cols = append(cols, schema.BagColumn, "version")
	return cols
}

// Snapshot loads the full prior state ordered by the serial id column, which
// reflects append order even when version stamps tie.
func (s *Store) Snapshot(ctx context.Context) ([]version.Record, error) {
	cols := s.allColumns()
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoteAll(cols), ", "), quoteQualified(s.cfg.Table), quoteIdent(s.cfg.IDColumn),
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot query: %w", err)
	}
	defer rows.Close()

	var out []version.Record
	for rows.Next() {
		dest := make([]any, len(cols))
		fixedVals := make([]*string, len(s.cfg.Columns))
		for i := range s.cfg.Columns {
			dest[i] = &fixedVals[i]
		}
		var bagRaw []byte
		var stamp time.Time
		dest[len(cols)-2] = &bagRaw
		dest[len(cols)-1] = &stamp

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres: snapshot scan: %w", err)
		}

		fixed := make(records.Record, len(s.cfg.Columns))
		for i, col := range s.cfg.Columns {
			if fixedVals[i] == nil {
				fixed[col] = nil
				continue
			}
			fixed[col] = *fixedVals[i]
		}
		bag := map[string]any{}
		if len(bagRaw) > 0 {
			if err := json.Unmarshal(bagRaw, &bag); err != nil {
				return nil, fmt.Errorf("postgres: decode %s: %w", schema.BagColumn, err)
			}
		}
		out = append(out, version.Record{Fixed: fixed, Bag: bag, Version: stamp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return out, nil
}

// Insert writes records one statement per row inside a single batch.
// ON CONFLICT DO NOTHING turns duplicate-key rows into zero-row command tags,
// counted as conflicts; the first other error aborts the remaining batch.
func (s *Store) Insert(ctx context.Context, recs []version.Record) (store.Result, error) {
	var res store.Result
	if len(recs) == 0 {
		return res, nil
	}

	cols := s.allColumns()
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		quoteQualified(s.cfg.Table), strings.Join(quoteAll(cols), ", "), strings.Join(placeholders, ", "),
	)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		args, err := s.rowArgs(rec)
		if err != nil {
			return res, err
		}
		batch.Queue(insert, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		tag, err := br.Exec()
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return res, fmt.Errorf("postgres: insert: %s (%s)", pgErr.Message, pgErr.SQLState())
			}
			return res, fmt.Errorf("postgres: insert: %w", err)
		}
		if tag.RowsAffected() == 0 {
			res.Conflicts++
			continue
		}
		res.Inserted += tag.RowsAffected()
	}
	return res, nil
}

func (s *Store) rowArgs(rec version.Record) ([]any, error) {
	args := make([]any, 0, len(s.cfg.Columns)+2)
	for _, col := range s.cfg.Columns {
		args = append(args, rec.Fixed[col])
	}
	bag, err := json.Marshal(rec.Bag)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode %s: %w", schema.BagColumn, err)
	}
	args = append(args, bag, rec.Version)
	return args, nil
}

// quoteIdent double-quotes a single identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteQualified quotes a possibly schema-qualified name like "public.t".
func quoteQualified(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdent(c)
	}
	return out
}
