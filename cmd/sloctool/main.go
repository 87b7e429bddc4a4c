package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sloctool/sloctool/internal/api"
	"github.com/sloctool/sloctool/internal/config"
	"github.com/sloctool/sloctool/internal/db"
	"github.com/sloctool/sloctool/internal/report"
	"github.com/sloctool/sloctool/internal/scheduler"
	"github.com/sloctool/sloctool/internal/sloc"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	serve := flag.Bool("serve", false, "keep running: scheduled recounts plus HTTP API")
	perFile := flag.Bool("per-file", false, "include per-file counts in the report")
	flag.Parse()

	// ── Logging (initial — overridden below once config is loaded) ─────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Config ─────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *perFile {
		cfg.PerFileCounts = true
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	// ── Search roots: command line > config > roots file ───────────────────
	roots := flag.Args()
	if len(roots) == 0 {
		roots = cfg.Roots
	}
	if len(roots) == 0 {
		roots, err = config.LoadRoots(cfg.RootsFile)
		if err != nil {
			slog.Error("load roots", "error", err)
			os.Exit(1)
		}
	}
	if len(roots) == 0 {
		slog.Error("no search roots configured")
		os.Exit(1)
	}

	slog.Info("sloctool starting",
		"version", version,
		"roots", roots,
		"workers", cfg.Workers,
		"extensions", cfg.Extensions,
		"serve", *serve)

	slocCfg := sloc.Config{
		Workers:       cfg.Workers,
		MaxFiles:      cfg.MaxFiles,
		MaxFileSize:   cfg.MaxFileSize,
		PerFileCounts: cfg.PerFileCounts,
		Extensions:    cfg.Extensions,
		ExcludePaths:  cfg.ExcludePaths,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		runServe(ctx, cfg, roots, slocCfg)
		return
	}
	runOnce(ctx, cfg, roots, slocCfg)
}

// runOnce executes a single counting run, prints the summary, writes the
// report artifact, and records the run when a history DB is configured.
// Per-file errors leave the exit status at 0; only fatal configuration
// errors exit non-zero.
func runOnce(ctx context.Context, cfg *config.Config, roots []string, slocCfg sloc.Config) {
	progress := &sloc.Progress{}

	var rep *sloc.Report
	var err error

	if cfg.DBPath != "" {
		database := mustOpenDB(cfg.DBPath)
		defer database.Close()

		startedAt := time.Now()
		runID, recErr := sloc.InsertRunRecord(database, startedAt, "cli")
		if recErr != nil {
			slog.Error("create run record", "error", recErr)
			os.Exit(1)
		}
		rep, err = sloc.ExecuteRecorded(ctx, database, runID, startedAt, roots, slocCfg, progress)
	} else {
		rep, err = sloc.NewRunner(roots, slocCfg).Run(ctx, progress)
	}

	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	if err := report.Render(os.Stdout, rep); err != nil {
		slog.Error("write report", "error", err)
		os.Exit(1)
	}
	if err := report.WriteFile(cfg.OutputPath, rep); err != nil {
		slog.Error("write report file", "error", err)
	}
}

// runServe starts the scheduler and the HTTP API and blocks until the
// process is signalled.
func runServe(ctx context.Context, cfg *config.Config, roots []string, slocCfg sloc.Config) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "sloctool.db"
	}
	database := mustOpenDB(dbPath)
	defer database.Close()

	// Repair any runs left 'running' by a crashed process.
	if err := sloc.MarkStaleRunsFailed(database); err != nil {
		slog.Warn("mark stale runs", "error", err)
	}

	mgr := sloc.NewManager(database, roots, slocCfg)

	sched := scheduler.New()
	if cfg.Schedule != "" {
		if err := sched.SetJob(cfg.Schedule, func() {
			slog.Info("scheduled run triggered")
			if _, err := mgr.Start(context.Background(), "schedule"); err != nil {
				slog.Warn("scheduled run start", "error", err)
			}
		}); err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := api.New(cfg.HTTPAddr, database, mgr, sched, version)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("sloctool stopped")
}

func mustOpenDB(path string) *sql.DB {
	database, err := db.Open(path)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}
	return database
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
