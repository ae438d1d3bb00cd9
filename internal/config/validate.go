// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a decoded Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Config.
//
// Path is a dotted path into the config (e.g. "db.kind",
// "source.sharepoint.base_url"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation / linting of a Config.
//
// It does not mutate the config. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	cfg, err := config.Load(path)
//	if err != nil { ... }
//	issues := config.Validate(cfg)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func Validate(cfg Config) []Issue {
	var issues []Issue

	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateSchemas(cfg.Schemas)...)
	issues = append(issues, validateDB(cfg.DB)...)
	issues = append(issues, validateNotify(cfg.Notify)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"local":      {},
		"sharepoint": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; expected local or sharepoint", s.Kind),
		})
	}

	if len(s.Extensions) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.extensions",
			Message:  "no extensions configured; the listing will match no files",
		})
	}

	switch s.Kind {
	case "local":
		if strings.TrimSpace(s.Local.Input) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.local.input",
				Message:  "local source requires a non-empty input folder",
			})
		}
		if strings.TrimSpace(s.Local.Imported) == "" || strings.TrimSpace(s.Local.Broken) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.local",
				Message:  "local source requires imported and broken folders",
			})
		}
	case "sharepoint":
		if strings.TrimSpace(s.SharePoint.BaseURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.sharepoint.base_url",
				Message:  "sharepoint source requires a non-empty base_url",
			})
		}
		if strings.TrimSpace(s.SharePoint.Library) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.sharepoint.library",
				Message:  "sharepoint source requires a non-empty library",
			})
		}
		if s.SharePoint.ImportedFolder == "" || s.SharePoint.BrokenFolder == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.sharepoint",
				Message:  "sharepoint source requires imported_folder and broken_folder",
			})
		}
		if s.SharePoint.DownloadConcurrency < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.sharepoint.download_concurrency",
				Message:  "download_concurrency must not be negative",
			})
		}
	}

	return issues
}

// validateSchemas checks that all three schema paths are set.
func validateSchemas(s Schemas) []Issue {
	var issues []Issue

	for _, f := range []struct {
		path  string
		value string
	}{
		{"schemas.rename", s.Rename},
		{"schemas.fixed", s.Fixed},
		{"schemas.descriptive", s.Descriptive},
	} {
		if strings.TrimSpace(f.value) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     f.path,
				Message:  "schema file path must not be empty",
			})
		}
	}

	return issues
}

// validateDB validates sink configuration.
func validateDB(db DBConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(db.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.kind",
			Message:  "db.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
		"csvfile":  {},
	}
	if _, ok := known[db.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.kind",
			Message:  fmt.Sprintf("unknown db kind %q; expected postgres, sqlite, or csvfile", db.Kind),
		})
		return issues
	}

	switch db.Kind {
	case "postgres", "sqlite":
		if strings.TrimSpace(db.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "db.dsn",
				Message:  fmt.Sprintf("%s sink requires a non-empty dsn", db.Kind),
			})
		}
		if strings.TrimSpace(db.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "db.table",
				Message:  fmt.Sprintf("%s sink requires a non-empty table", db.Kind),
			})
		}
	case "csvfile":
		if strings.TrimSpace(db.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "db.path",
				Message:  "csvfile sink requires a non-empty path",
			})
		}
	}

	return issues
}

// validateNotify validates notification settings.
func validateNotify(n Notify) []Issue {
	var issues []Issue

	switch n.Kind {
	case "", "none":
		// Notification disabled; rejected files still move to broken but no
		// report is delivered.
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "notify.kind",
			Message:  "notification disabled; nobody is told about rejected files",
		})
	case "smtp":
		if strings.TrimSpace(n.Recipient) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "notify.recipient",
				Message:  "smtp notifier requires a non-empty recipient",
			})
		}
		if strings.TrimSpace(n.SMTP.Host) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "notify.smtp.host",
				Message:  "smtp notifier requires a non-empty host",
			})
		}
		if n.SMTP.Port <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "notify.smtp.port",
				Message:  fmt.Sprintf("smtp port must be positive, got %d", n.SMTP.Port),
			})
		}
		if strings.TrimSpace(n.SMTP.From) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "notify.smtp.from",
				Message:  "smtp notifier requires a non-empty sender address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "notify.kind",
			Message:  fmt.Sprintf("unknown notify kind %q; expected smtp or none", n.Kind),
		})
	}

	return issues
}

// validateMetrics validates metrics backend settings.
func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", "none":
		// Metrics are optional.
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires a non-empty pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires a non-empty datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; expected pushgateway, datadog, or none", m.Backend),
		})
	}

	return issues
}
