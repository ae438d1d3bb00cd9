// Package notify delivers human-readable error reports for files that were
// quarantined. The report format is stable so operators can grep their
// mailbox for a row number or column name.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"importer/internal/transform"
)

// Notifier sends one report about one file to one recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, file, report string) error
}

// Nop drops every report.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }

// FormatReport renders the rejections of a single file. Each rejected row
// lists its diagnostics followed by the original row snapshot so the sender
// can fix the cell without opening the file.
func FormatReport(file string, rejected []transform.Rejected) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File %q was moved to the broken folder.\n", file)
	fmt.Fprintf(&b, "Rejected rows: %d\n\n", len(rejected))

	for _, rej := range rejected {
		for _, d := range rej.Diags {
			b.WriteString(d.String())
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Row %d data: %s\n\n", rej.Row, formatRow(rej.Raw))
	}

	b.WriteString("Accepted rows from this file were imported. Fix the rows above and resubmit the file.\n")
	return b.String()
}

// FormatUnreadable renders the report for a file that could not be read or
// parsed at all.
func FormatUnreadable(file string, cause error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File %q was moved to the broken folder.\n", file)
	fmt.Fprintf(&b, "The file could not be read: %v\n\n", cause)
	b.WriteString("No rows were imported. Fix the file and resubmit it.\n")
	return b.String()
}

// formatRow renders a row snapshot with keys in sorted order so reports are
// deterministic.
func formatRow(raw map[string]any) string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := raw[k]
		if v == nil {
			parts = append(parts, fmt.Sprintf("%s=<nil>", k))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
