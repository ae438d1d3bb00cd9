// Package importer drives one end-to-end run: list input files, parse and
// validate each one, merge accepted rows into the versioned history, persist
// the new versions, move processed files, and notify about rejected ones.
//
// Failure policy, from coarse to fine:
//
//   - Snapshot or listing failures abort the run; nothing is moved.
//   - A persist failure aborts before any file is moved, so the whole batch
//     is retried on the next run.
//   - An unreadable or unparsable file is quarantined and reported; other
//     files in the batch are unaffected.
//   - A rejected row quarantines its file but never blocks the file's valid
//     rows, which are imported normally.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"importer/internal/checksum"
	"importer/internal/eventlog"
	"importer/internal/metrics"
	"importer/internal/notify"
	"importer/internal/parser"
	"importer/internal/schema"
	"importer/internal/source"
	"importer/internal/store"
	"importer/internal/transform"
	"importer/internal/version"
	"importer/pkg/records"
)

// Options wires one run. Source, Mover, and Repo are required; the rest
// default to no-ops (and time.Now for Now).
type Options struct {
	Schemas schema.Set
	Source  source.Lister
	Mover   source.Mover
	Repo    store.Repository

	// Notifier delivers error reports to Recipient for quarantined files.
	Notifier  notify.Notifier
	Recipient string

	Events eventlog.Sink
	Log    *slog.Logger

	// Now stamps new record versions; injected by tests.
	Now func() time.Time

	// DryRun runs the full pipeline but skips persisting, moving, and
	// notifying.
	DryRun bool
}

// Summary reports what one run did.
type Summary struct {
	RunID         string
	FilesImported int
	FilesBroken   int
	FilesSkipped  int
	RowsAccepted  int
	RowsRejected  int
	Inserted      int64
	Conflicts     int64
}

// fileOutcome is the per-file verdict accumulated during the parse/validate
// phase and acted on (move + notify) only after the batch persisted.
type fileOutcome struct {
	name   string
	dest   source.Destination
	report string // non-empty when the file owner should be notified
}

// Importer runs the pipeline.
type Importer struct {
	opts Options
}

// New validates opts and returns an Importer.
func New(opts Options) (*Importer, error) {
	if opts.Source == nil || opts.Mover == nil || opts.Repo == nil {
		return nil, fmt.Errorf("importer: source, mover, and repository are required")
	}
	if opts.Schemas.Fixed == nil || opts.Schemas.Descriptive == nil {
		return nil, fmt.Errorf("importer: fixed and descriptive schemas are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Events == nil {
		opts.Events = eventlog.Nop{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{opts: opts}, nil
}

// Run executes one import batch.
func (imp *Importer) Run(ctx context.Context) (Summary, error) {
	runID := eventlog.NewRunID()
	sum := Summary{RunID: runID}
	log := imp.opts.Log.With("run_id", runID)

	prior, err := step("snapshot", func() ([]version.Record, error) {
		return imp.opts.Repo.Snapshot(ctx)
	})
	if err != nil {
		return sum, fmt.Errorf("importer: load prior state: %w", err)
	}
	log.Info("prior state loaded", "records", len(prior))

	files, err := step("list", func() ([]source.File, error) {
		return imp.opts.Source.List(ctx)
	})
	if err != nil {
		return sum, fmt.Errorf("importer: list input files: %w", err)
	}
	log.Info("input listed", "files", len(files))

	var (
		accepted []records.Record
		outcomes []fileOutcome
		seen     = map[string]string{} // checksum -> first file with that content
	)

	for _, f := range files {
		imp.opts.Events.Record(eventlog.Event{
			RunID: runID, File: f.Name,
			Severity: eventlog.SeverityInfo, Action: eventlog.ActionFileListed,
		})

		if f.Err != nil {
			log.Warn("unreadable file quarantined", "file", f.Name, "err", f.Err)
			outcomes = append(outcomes, fileOutcome{
				name:   f.Name,
				dest:   source.DestBroken,
				report: notify.FormatUnreadable(f.Name, f.Err),
			})
			imp.opts.Events.Record(eventlog.Event{
				RunID: runID, File: f.Name,
				Severity: eventlog.SeverityError, Action: eventlog.ActionFileBroken,
				Result: f.Err.Error(),
			})
			continue
		}

		sumHex := checksum.Sum(f.Content)
		if first, dup := seen[sumHex]; dup {
			log.Info("duplicate file skipped", "file", f.Name, "duplicate_of", first)
			outcomes = append(outcomes, fileOutcome{name: f.Name, dest: source.DestImported})
			sum.FilesSkipped++
			imp.opts.Events.Record(eventlog.Event{
				RunID: runID, File: f.Name,
				Severity: eventlog.SeverityInfo, Action: eventlog.ActionFileSkipped,
				Result: "duplicate of " + first,
			})
			continue
		}
		seen[sumHex] = f.Name

		rows, rejected, err := imp.processFile(f)
		if err != nil {
			log.Warn("unparsable file quarantined", "file", f.Name, "err", err)
			outcomes = append(outcomes, fileOutcome{
				name:   f.Name,
				dest:   source.DestBroken,
				report: notify.FormatUnreadable(f.Name, err),
			})
			imp.opts.Events.Record(eventlog.Event{
				RunID: runID, File: f.Name,
				Severity: eventlog.SeverityError, Action: eventlog.ActionFileBroken,
				Result: err.Error(),
			})
			continue
		}

		accepted = append(accepted, rows...)
		sum.RowsAccepted += len(rows)
		sum.RowsRejected += len(rejected)

		for _, rej := range rejected {
			for _, d := range rej.Diags {
				imp.opts.Events.Record(eventlog.Event{
					RunID: runID, File: f.Name,
					Severity: eventlog.SeverityWarning, Action: eventlog.ActionRowRejected,
					Result: d.String(),
				})
			}
		}

		out := fileOutcome{name: f.Name, dest: source.DestImported}
		if len(rejected) > 0 {
			out.dest = source.DestBroken
			out.report = notify.FormatReport(f.Name, rejected)
		}
		outcomes = append(outcomes, out)
		log.Info("file processed", "file", f.Name,
			"accepted", len(rows), "rejected", len(rejected))
	}

	merged, _ := step("merge", func() ([]version.Record, error) {
		m := version.Merger{Now: imp.opts.Now}
		return m.Upsert(accepted, prior), nil
	})
	appended := merged[len(prior):]

	for _, rec := range appended {
		k := rec.Key()
		imp.opts.Events.Record(eventlog.Event{
			RunID: runID, IDType: k.IDType, IDValue: k.IDValue, Product: k.Product,
			Severity: eventlog.SeverityInfo, Action: eventlog.ActionRowVersioned,
		})
	}

	if imp.opts.DryRun {
		log.Info("dry run, skipping persist and file moves",
			"would_insert", len(appended))
		imp.countOutcomes(&sum, outcomes)
		imp.recordRunMetrics(sum)
		return sum, nil
	}

	res, err := step("insert", func() (store.Result, error) {
		return imp.opts.Repo.Insert(ctx, appended)
	})
	sum.Inserted = res.Inserted
	sum.Conflicts = res.Conflicts
	if err != nil {
		// Files stay in the input area so the next run retries the batch.
		return sum, fmt.Errorf("importer: persist new versions: %w", err)
	}
	if res.Conflicts > 0 {
		log.Warn("duplicate versions skipped by sink", "conflicts", res.Conflicts)
		imp.opts.Events.Record(eventlog.Event{
			RunID: runID,
			Severity: eventlog.SeverityWarning, Action: eventlog.ActionInsert,
			Result: fmt.Sprintf("%d duplicate versions skipped", res.Conflicts),
		})
	}

	var moveErrs []error
	_, err = step("move", func() (struct{}, error) {
		for _, out := range outcomes {
			if err := imp.opts.Mover.Move(ctx, out.name, out.dest); err != nil {
				moveErrs = append(moveErrs, err)
				imp.opts.Events.Record(eventlog.Event{
					RunID: runID, File: out.name,
					Severity: eventlog.SeverityError, Action: eventlog.ActionFileBroken,
					Result: "move failed: " + err.Error(),
				})
				continue
			}
			action := eventlog.ActionFileImported
			if out.dest == source.DestBroken {
				action = eventlog.ActionFileBroken
			}
			imp.opts.Events.Record(eventlog.Event{
				RunID: runID, File: out.name,
				Severity: eventlog.SeverityInfo, Action: action,
			})
		}
		return struct{}{}, errors.Join(moveErrs...)
	})

	for _, out := range outcomes {
		if out.report == "" {
			continue
		}
		if nerr := imp.opts.Notifier.Send(ctx, imp.opts.Recipient, out.name, out.report); nerr != nil {
			log.Error("notification failed", "file", out.name, "err", nerr)
			imp.opts.Events.Record(eventlog.Event{
				RunID: runID, File: out.name,
				Severity: eventlog.SeverityError, Action: eventlog.ActionNotify,
				Result: nerr.Error(),
			})
			continue
		}
		imp.opts.Events.Record(eventlog.Event{
			RunID: runID, File: out.name,
			Severity: eventlog.SeverityInfo, Action: eventlog.ActionNotify,
		})
	}

	imp.countOutcomes(&sum, outcomes)
	imp.recordRunMetrics(sum)

	if err != nil {
		return sum, fmt.Errorf("importer: move processed files: %w", err)
	}
	return sum, nil
}

// processFile parses and validates one file, returning its accepted rows and
// rejections. A parse failure means the whole file is unusable.
func (imp *Importer) processFile(f source.File) ([]records.Record, []transform.Rejected, error) {
	p, err := parser.ForFile(f.Name)
	if err != nil {
		return nil, nil, err
	}

	type parsed struct {
		raw  []records.Record
		rows []int
	}
	tbl, err := step("parse", func() (parsed, error) {
		raw, rows, err := p.Parse(bytes.NewReader(f.Content))
		return parsed{raw: raw, rows: rows}, err
	})
	if err != nil {
		return nil, nil, err
	}

	result, _ := step("validate", func() (transform.Result, error) {
		renamed := transform.Rename(tbl.raw, imp.opts.Schemas.Rename)
		structured := transform.Reshape(renamed, imp.opts.Schemas.Fixed, imp.opts.Schemas.Descriptive)
		return transform.Validate(structured, tbl.raw, tbl.rows, imp.opts.Schemas.Fixed, imp.opts.Schemas.Descriptive), nil
	})
	return result.Accepted, result.Rejected, nil
}

// step runs fn and records its duration and status under the given name.
func step[T any](name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.RecordStep(name, err, time.Since(start))
	return v, err
}

func (imp *Importer) countOutcomes(sum *Summary, outcomes []fileOutcome) {
	for _, out := range outcomes {
		if out.dest == source.DestBroken {
			sum.FilesBroken++
		} else {
			sum.FilesImported++
		}
	}
	// Skipped duplicates were counted as imported above; pull them back out.
	sum.FilesImported -= sum.FilesSkipped
}

func (imp *Importer) recordRunMetrics(sum Summary) {
	metrics.RecordFiles("imported", int64(sum.FilesImported))
	metrics.RecordFiles("broken", int64(sum.FilesBroken))
	metrics.RecordFiles("skipped", int64(sum.FilesSkipped))
	metrics.RecordRows("accepted", int64(sum.RowsAccepted))
	metrics.RecordRows("rejected", int64(sum.RowsRejected))
	metrics.RecordRows("inserted", sum.Inserted)
	metrics.RecordRows("conflicts", sum.Conflicts)
}
