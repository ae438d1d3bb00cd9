// Package eventlog records what happened to each file and record during an
// import run. Events carry the run ID so the lines of one batch can be pulled
// out of a shared log stream.
package eventlog

import (
	"log/slog"

	"github.com/google/uuid"
)

// Severity classifies an event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Actions recorded over a run.
const (
	ActionFileListed   = "file_listed"
	ActionFileSkipped  = "file_skipped"
	ActionFileImported = "file_imported"
	ActionFileBroken   = "file_broken"
	ActionRowRejected  = "row_rejected"
	ActionRowVersioned = "row_versioned"
	ActionInsert       = "insert"
	ActionNotify       = "notify"
)

// Event is one audit entry. Identity fields are set only for record-level
// actions; file-level actions leave them empty.
type Event struct {
	RunID    string
	File     string
	IDType   string
	IDValue  string
	Product  string
	Severity Severity
	Action   string
	Result   string
}

// Sink consumes events. Implementations must tolerate concurrent calls.
type Sink interface {
	Record(Event)
}

// NewRunID returns a fresh identifier shared by all events of one run.
func NewRunID() string {
	return uuid.NewString()
}

// Logger writes events through a slog.Logger, one line per event.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns a Sink writing to log, or to slog.Default when nil.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

// Record emits ev at its severity's level.
func (l *Logger) Record(ev Event) {
	attrs := []any{
		"run_id", ev.RunID,
		"action", ev.Action,
	}
	if ev.File != "" {
		attrs = append(attrs, "file", ev.File)
	}
	if ev.IDType != "" {
		attrs = append(attrs, "id_type", ev.IDType, "id_value", ev.IDValue, "product", ev.Product)
	}
	if ev.Result != "" {
		attrs = append(attrs, "result", ev.Result)
	}

	switch ev.Severity {
	case SeverityError:
		l.log.Error("import event", attrs...)
	case SeverityWarning:
		l.log.Warn("import event", attrs...)
	default:
		l.log.Info("import event", attrs...)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(Event) {}
