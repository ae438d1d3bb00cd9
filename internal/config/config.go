// Package config defines the canonical configuration model for the importer.
// Configuration is a single YAML document loaded from disk and passed through
// the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the YAML structure used in the config
//     file.
//  3. One document: source, schemas, sink, notification, and metrics settings
//     live together so a run is fully described by one file.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the top-level object decoded from the YAML config file.
type Config struct {
	// Source describes where input spreadsheets come from and where processed
	// files are moved.
	Source Source `yaml:"source"`

	// Schemas points at the three JSON schema files driving the pipeline.
	Schemas Schemas `yaml:"schemas"`

	// DB describes the relational sink.
	DB DBConfig `yaml:"db"`

	// Notify configures error-report delivery for quarantined files.
	Notify Notify `yaml:"notify"`

	// Metrics configures the optional metrics backend.
	Metrics Metrics `yaml:"metrics"`

	// Log configures diagnostic logging.
	Log Log `yaml:"log"`
}

// Source identifies the file source. Additional kinds can be added over time.
type Source struct {
	// Kind selects the source implementation: "local" or "sharepoint".
	Kind string `yaml:"kind"`

	// Local carries options for the "local" source kind.
	Local SourceLocal `yaml:"local"`

	// SharePoint carries options for the "sharepoint" source kind.
	SharePoint SourceSharePoint `yaml:"sharepoint"`

	// Extensions filters the listing, e.g. [".xlsx", ".csv"]. Files with
	// other extensions are ignored.
	Extensions []string `yaml:"extensions"`
}

// SourceLocal holds configuration for the "local" source kind.
type SourceLocal struct {
	// Input is the folder scanned for new spreadsheets.
	Input string `yaml:"input"`

	// Imported and Broken receive processed files.
	Imported string `yaml:"imported"`
	Broken   string `yaml:"broken"`
}

// SourceSharePoint holds configuration for the "sharepoint" source kind.
type SourceSharePoint struct {
	// BaseURL is the site root, e.g. "https://sp.example.com/sites/imports".
	BaseURL string `yaml:"base_url"`

	// Library is the server-relative folder holding input files.
	Library string `yaml:"library"`

	// ImportedFolder and BrokenFolder receive processed files.
	ImportedFolder string `yaml:"imported_folder"`
	BrokenFolder   string `yaml:"broken_folder"`

	// Token is the bearer token; empty for unauthenticated endpoints.
	Token string `yaml:"token"`

	// DownloadConcurrency bounds parallel downloads; the source default
	// applies when zero.
	DownloadConcurrency int `yaml:"download_concurrency"`

	// InsecureSkipVerify disables TLS verification for self-signed internal
	// endpoints.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Schemas points at the three schema files: the header rename map, the fixed
// column schema, and the descriptive attribute schema.
type Schemas struct {
	Rename      string `yaml:"rename"`
	Fixed       string `yaml:"fixed"`
	Descriptive string `yaml:"descriptive"`
}

// DBConfig configures the relational sink.
type DBConfig struct {
	// Kind selects the sink implementation: "postgres", "sqlite", or
	// "csvfile".
	Kind string `yaml:"kind"`

	// DSN is the connection string for postgres/sqlite.
	DSN string `yaml:"dsn"`

	// Table is the destination table name for postgres/sqlite.
	Table string `yaml:"table"`

	// Path is the snapshot file path for the csvfile sink.
	Path string `yaml:"path"`
}

// Notify configures how error reports reach the file owner.
type Notify struct {
	// Kind selects the notifier: "smtp" or "none".
	Kind string `yaml:"kind"`

	// Recipient receives all error reports.
	Recipient string `yaml:"recipient"`

	SMTP SMTP `yaml:"smtp"`
}

// SMTP holds mail relay settings for the "smtp" notifier kind.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Metrics configures the optional metrics backend.
type Metrics struct {
	// Backend selects the implementation: "none", "pushgateway", or
	// "datadog".
	Backend string `yaml:"backend"`

	// Job is the Pushgateway job name; a default applies when empty.
	Job string `yaml:"job"`

	// PushgatewayURL is the Pushgateway base URL for the "pushgateway"
	// backend.
	PushgatewayURL string `yaml:"pushgateway_url"`

	// DatadogAddr is the DogStatsD address for the "datadog" backend.
	DatadogAddr string `yaml:"datadog_addr"`
}

// Log configures diagnostic logging.
type Log struct {
	// Level is one of "debug", "info", "warn", "error"; "info" when empty.
	Level string `yaml:"level"`

	// Format is "text" or "json"; "text" when empty.
	Format string `yaml:"format"`
}

// Load reads and decodes the YAML config at path.
func Load(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
