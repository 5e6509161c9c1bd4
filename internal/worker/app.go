// Package worker wires the ingestion pipeline together: archive index
// and downloads, NetCDF parsing, PostgreSQL upload and optional raw
// archival. It owns process lifecycle: signals, run loop, exit status.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oceanatlas/argosync/internal/httppool"
	"github.com/oceanatlas/argosync/internal/index"
	"github.com/oceanatlas/argosync/internal/ingest"
	"github.com/oceanatlas/argosync/internal/logging"
	"github.com/oceanatlas/argosync/internal/manifest"
	"github.com/oceanatlas/argosync/internal/objstore"
	"github.com/oceanatlas/argosync/internal/parser"
	"github.com/oceanatlas/argosync/internal/store/repomanager"
	"github.com/oceanatlas/argosync/internal/syncer"
	"github.com/oceanatlas/argosync/internal/upload"
	"github.com/oceanatlas/argosync/internal/worker/config"
)

// ManifestFileName is the manifest's location inside the cache dir.
const ManifestFileName = "argo_sync_manifest.json"

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) *App {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{config: c, logger: logging.NewSlogLogger(sl)}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run executes ingestion runs until the context ends. With a zero
// Interval it performs exactly one run and returns its error. In
// sync-only mode it only mirrors the archive into the local cache.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	app.logger.Info(ctx, "starting worker",
		"dac", app.config.DAC, "base_url", app.config.ArchiveBaseURL,
		"skip_download", app.config.SkipDownload, "sync_only", app.config.SyncOnly)

	if app.config.SyncOnly {
		return app.runSyncOnly(ctx)
	}

	orch, cleanup, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for {
		summary, err := orch.Run(ctx, app.config.Targets)
		if err != nil {
			if !ingest.IsRunFatal(err) {
				return nil // shutdown requested
			}
			// One-shot runs escalate; a periodic worker waits for the
			// next tick instead of dying on a transient index outage.
			if app.config.Interval <= 0 {
				return fmt.Errorf("run %s: %w", summary.RunID, err)
			}
			app.logger.Error(ctx, "run failed", "run_id", summary.RunID, "error", err)
		}

		if err == nil && app.config.Interval <= 0 {
			if summary.Total > 0 && summary.Succeeded == 0 {
				return fmt.Errorf("run %s: all %d floats failed", summary.RunID, summary.Total)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(app.config.Interval):
		}
	}
}

// runSyncOnly mirrors the archive into the local cache without parsing
// or uploading, useful for pre-seeding a cache. No database is opened.
func (app *App) runSyncOnly(ctx context.Context) error {
	sync, closePools := app.buildSyncer(ctx)
	defer closePools()

	for {
		stats, err := sync.SyncAll(ctx, app.config.Targets)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if app.config.Interval <= 0 {
				return fmt.Errorf("sync: %w", err)
			}
			app.logger.Error(ctx, "sync failed", "error", err)
		}

		if err == nil && app.config.Interval <= 0 {
			if stats.Failed > 0 && stats.Downloaded == 0 {
				return fmt.Errorf("sync: all %d floats failed", stats.Failed)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(app.config.Interval):
		}
	}
}

// buildSyncer constructs the download stack: manifest, connection
// pools, index fetcher and the sync manager.
func (app *App) buildSyncer(ctx context.Context) (*syncer.Manager, func()) {
	c := app.config

	mf := manifest.Load(ctx, filepath.Join(c.CacheDir, ManifestFileName), app.logger)

	pools := httppool.NewRegistry(httppool.Config{
		Size:           c.PoolSize,
		IdleTimeout:    c.PoolIdleTimeout,
		ProbeTimeout:   c.ProbeTimeout,
		RequestTimeout: c.RequestTimeout,
	}, app.logger)

	fetcher := index.NewFetcher(c.ArchiveBaseURL, c.DAC,
		&http.Client{Timeout: c.RequestTimeout}, c.MaxRetries, c.RetryDelay, app.logger)

	sync := syncer.NewManager(syncer.Config{
		BaseURL:             c.ArchiveBaseURL,
		BasePath:            c.ArchiveBasePath,
		DAC:                 c.DAC,
		CacheDir:            c.CacheDir,
		MaxConcurrentFloats: c.MaxConcurrentFloats,
		PerFloatConnections: c.PerFloatConnections,
		MaxRetries:          c.MaxRetries,
		RetryDelay:          c.RetryDelay,
		CheckpointEvery:     c.CheckpointEvery,
	}, fetcher, mf, pools, app.logger)

	return sync, pools.CloseAll
}

// build constructs the orchestrator and everything under it.
func (app *App) build(ctx context.Context) (*ingest.Orchestrator, func(), error) {
	c := app.config

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	pipeline := upload.NewPipeline(db, repos, app.logger)
	if err := pipeline.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	sync, closePools := app.buildSyncer(ctx)

	archiver, err := objstore.New(ctx, objstore.Config{
		Enabled:      c.ArchiveRaw,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		KeyPrefix:    c.S3KeyPrefix,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
	}, app.logger)
	if err != nil {
		closePools()
		db.Close()
		return nil, nil, err
	}

	orch := ingest.NewOrchestrator(ingest.Config{
		DAC:                 c.DAC,
		MaxConcurrentFloats: c.MaxConcurrentFloats,
		SkipDownload:        c.SkipDownload,
		ArchiveRaw:          c.ArchiveRaw,
	}, sync, parser.New(app.logger), pipeline, archiver, app.logger)

	cleanup := func() {
		closePools()
		db.Close()
	}
	return orch, cleanup, nil
}
