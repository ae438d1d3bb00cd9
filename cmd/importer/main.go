package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"importer/internal/config"
	"importer/internal/eventlog"
	"importer/internal/importer"
	"importer/internal/metrics"
	"importer/internal/metrics/datadog"
	"importer/internal/metrics/prompush"
	"importer/internal/notify"
	"importer/internal/schema"
	"importer/internal/source"
	"importer/internal/source/dir"
	"importer/internal/source/sharepoint"
	"importer/internal/store"
	"importer/internal/store/csvfile"
	"importer/internal/store/postgres"
	"importer/internal/store/sqlite"
)

// main is the entry point for the importer binary. It loads the YAML config,
// optionally initializes a metrics backend, wires the source, sink, and
// notifier, and executes one import run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		dryRun            bool
	)

	flag.StringVar(&cfgPath, "config", "configs/config.yaml", "importer config YAML path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend override (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides config and env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and validate files but persist, move, and notify nothing")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("configuration is invalid: %v", cfgPath)
	}

	// If validate flag is set, only validate the configuration and exit.
	if validate {
		fmt.Printf("configuration is valid: %v\n", cfgPath)
		os.Exit(0)
	}

	log := newLogger(cfg.Log, *verbose)
	slog.SetDefault(log)

	setupMetrics(cfg.Metrics, metricsBackendFlg, pushGatewayURLFlg, log)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", "err", err)
		}
	}()

	schemas, err := schema.LoadSet(cfg.Schemas.Rename, cfg.Schemas.Fixed, cfg.Schemas.Descriptive)
	if err != nil {
		fatalf("load schemas: %v", err)
	}

	lister, mover, err := buildSource(cfg.Source)
	if err != nil {
		fatalf("source: %v", err)
	}

	repo, closeRepo, err := buildRepo(cfg.DB, schemas)
	if err != nil {
		fatalf("sink: %v", err)
	}
	defer closeRepo()

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		fatalf("notifier: %v", err)
	}

	imp, err := importer.New(importer.Options{
		Schemas:   schemas,
		Source:    lister,
		Mover:     mover,
		Repo:      repo,
		Notifier:  notifier,
		Recipient: cfg.Notify.Recipient,
		Events:    eventlog.NewLogger(log),
		Log:       log,
		DryRun:    dryRun,
	})
	if err != nil {
		fatalf("importer: %v", err)
	}

	ctx := context.Background()
	start := time.Now()

	sum, err := imp.Run(ctx)
	if err != nil {
		log.Error("run failed", "run_id", sum.RunID, "err", err)
		os.Exit(1)
	}

	log.Info("run complete",
		"run_id", sum.RunID,
		"files_imported", sum.FilesImported,
		"files_broken", sum.FilesBroken,
		"files_skipped", sum.FilesSkipped,
		"rows_accepted", sum.RowsAccepted,
		"rows_rejected", sum.RowsRejected,
		"inserted", sum.Inserted,
		"conflicts", sum.Conflicts,
		"elapsed", time.Since(start).Truncate(time.Millisecond).String(),
	)
}

// newLogger builds the process logger from config; -v forces debug level.
func newLogger(cfg config.Log, verbose bool) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupMetrics installs a concrete metrics backend. Flags override config,
// config overrides env; the nop backend remains on any failure.
func setupMetrics(cfg config.Metrics, backendFlg, gatewayFlg string, log *slog.Logger) {
	backendName := backendFlg
	if backendName == "" {
		backendName = cfg.Backend
	}
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	switch backendName {
	case "pushgateway":
		gwURL := gatewayFlg
		if gwURL == "" {
			gwURL = cfg.PushgatewayURL
		}
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}

		b, err := prompush.NewBackend(cfg.Job, gwURL)
		if err != nil {
			log.Warn("metrics backend init failed, metrics disabled", "backend", backendName, "err", err)
			return
		}
		log.Info("metrics enabled", "backend", backendName, "url", gwURL, "job", cfg.Job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.DatadogAddr})
		if err != nil {
			log.Warn("metrics backend init failed, metrics disabled", "backend", backendName, "err", err)
			return
		}
		log.Info("metrics enabled", "backend", backendName, "addr", cfg.DatadogAddr)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Warn("unknown metrics backend, metrics disabled", "backend", backendName)
	}
}

// buildSource constructs the file source from config.
func buildSource(cfg config.Source) (source.Lister, source.Mover, error) {
	switch cfg.Kind {
	case "local":
		s := dir.New(cfg.Local.Input, cfg.Local.Imported, cfg.Local.Broken, cfg.Extensions)
		return s, s, nil
	case "sharepoint":
		s, err := sharepoint.New(sharepoint.Config{
			BaseURL:             cfg.SharePoint.BaseURL,
			Library:             cfg.SharePoint.Library,
			ImportedFolder:      cfg.SharePoint.ImportedFolder,
			BrokenFolder:        cfg.SharePoint.BrokenFolder,
			DownloadConcurrency: cfg.SharePoint.DownloadConcurrency,
			Client: sharepoint.ClientConfig{
				Token:              cfg.SharePoint.Token,
				InsecureSkipVerify: cfg.SharePoint.InsecureSkipVerify,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

// buildRepo constructs the sink from config. The sink's column set is the
// fixed schema minus the bag (stored in its own column) and the login column
// (dropped by the pipeline).
func buildRepo(cfg config.DBConfig, schemas schema.Set) (store.Repository, func(), error) {
	var columns []string
	for _, c := range schemas.Fixed.Columns() {
		if c.Name == schema.BagColumn || c.Name == schema.LoginColumn {
			continue
		}
		columns = append(columns, c.Name)
	}

	switch cfg.Kind {
	case "postgres":
		return postgres.New(context.Background(), postgres.Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: columns,
		})
	case "sqlite":
		return sqlite.New(context.Background(), sqlite.Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: columns,
		})
	case "csvfile":
		s, err := csvfile.New(csvfile.Config{Path: cfg.Path, Columns: columns})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown db kind %q", cfg.Kind)
}

// buildNotifier constructs the error-report notifier from config.
func buildNotifier(cfg config.Notify) (notify.Notifier, error) {
	switch cfg.Kind {
	case "", "none":
		return notify.Nop{}, nil
	case "smtp":
		return notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	return nil, fmt.Errorf("unknown notify kind %q", cfg.Kind)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
