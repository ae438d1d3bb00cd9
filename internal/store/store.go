// Package store defines the persistence contract for versioned identity
// records. A Repository both supplies the prior-state snapshot a pipeline run
// merges against and persists the run's newly appended versions.
//
// Conflict semantics: inserting a record whose identity key and version stamp
// already exist is NOT an error; backends count it as a conflict and move on
// (the row is considered handled). Any other write failure is fatal and aborts
// the remainder of the batch.
package store

import (
	"context"

	"importer/internal/version"
)

// Result summarizes one Insert call.
type Result struct {
	// Inserted counts rows actually written.
	Inserted int64
	// Conflicts counts duplicate-key rows that were skipped.
	Conflicts int64
}

// Repository is implemented by each storage backend.
type Repository interface {
	// Snapshot loads the complete prior state in append order; an empty
	// store yields an empty slice and no error.
	Snapshot(ctx context.Context) ([]version.Record, error)

	// Insert persists the given records. Duplicate-key conflicts are
	// counted in Result and do not fail the call; the first non-conflict
	// write error aborts the remaining batch and is returned alongside the
	// counts accumulated so far.
	Insert(ctx context.Context, recs []version.Record) (Result, error)
}
