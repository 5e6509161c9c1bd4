// Package syncer drives incremental, resumable downloads of aggregate
// float files. It is the only writer of the manifest and enforces the
// global concurrency bound across float pipelines.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/common"
	"github.com/oceanatlas/argosync/internal/httppool"
	"github.com/oceanatlas/argosync/internal/index"
	"github.com/oceanatlas/argosync/internal/logging"
	"github.com/oceanatlas/argosync/internal/manifest"
)

// Config carries the sync tunables. Constructed by the worker config;
// nothing here is read from ambient globals.
type Config struct {
	BaseURL  string // archive root, e.g. "https://data-argo.ifremer.fr"
	BasePath string // path prefix for data files, usually "dac"
	DAC      string
	CacheDir string

	MaxConcurrentFloats int           // global bound on in-flight floats
	PerFloatConnections int           // fan-out within one float
	MaxRetries          int           // attempts per file download
	RetryDelay          time.Duration // delay between attempts
	CheckpointEvery     int           // save manifest every N floats
}

// IndexSource is implemented by index.Fetcher.
type IndexSource interface {
	Fetch(ctx context.Context) (*index.Index, error)
}

// FloatPlan is the ordered group of files to fetch for one float.
type FloatPlan struct {
	FloatID string
	Files   []argo.RemoteFile
	// Stamp is the newest date_update seen for the float in the index,
	// used for change detection on the aggregate files.
	Stamp string
}

// FloatSyncResult summarizes one float's download outcome.
type FloatSyncResult struct {
	FloatID          string
	Success          bool
	BytesTransferred int64
	FilesOK          int
	FilesMissing     int
	Err              error
}

// Stats summarizes a whole run of SyncAll.
type Stats struct {
	Total      int
	Downloaded int
	New        int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Manager orchestrates planning, downloading and manifest checkpointing.
type Manager struct {
	cfg      Config
	source   IndexSource
	manifest *manifest.Manifest
	pools    *httppool.Registry
	logger   logging.Logger

	mu            sync.Mutex
	failedThisRun map[string]struct{}
	sinceSave     int
}

func NewManager(cfg Config, source IndexSource, mf *manifest.Manifest, pools *httppool.Registry, logger logging.Logger) *Manager {
	return &Manager{
		cfg:           cfg,
		source:        source,
		manifest:      mf,
		pools:         pools,
		logger:        logger,
		failedThisRun: make(map[string]struct{}),
	}
}

// Manifest exposes the manager-owned manifest for read access.
func (m *Manager) Manifest() *manifest.Manifest { return m.manifest }

// FloatDir returns the local directory holding a float's files.
func (m *Manager) FloatDir(floatID string) string {
	return filepath.Join(m.cfg.CacheDir, m.cfg.DAC, floatID)
}

// PlanSync computes the pending set: targets (or every float in the
// index partition) minus floats whose mandatory file is already current
// on disk, minus floats that already failed during this run.
func (m *Manager) PlanSync(ix *index.Index, targets []string) []FloatPlan {
	ids := targets
	if len(ids) == 0 {
		ids = ix.FloatIDs()
	}

	var plans []FloatPlan
	for _, id := range ids {
		files, inIndex := ix.Floats[id]
		if len(targets) > 0 && !inIndex {
			// Explicitly requested but absent from the index; let the
			// sync fail loudly instead of silently skipping it.
			m.logger.Warn(context.Background(), "float not in index", "float_id", id)
		}

		if m.failedInRun(id) {
			continue
		}

		stamp := newestStamp(files)
		plan := FloatPlan{
			FloatID: id,
			Files:   argo.AggregateFiles(m.cfg.DAC, id),
			Stamp:   stamp,
		}

		if m.manifest.Downloaded(id) && m.manifest.FileUpToDate(profPath(plan), stamp) {
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

func profPath(p FloatPlan) string {
	for _, f := range p.Files {
		if f.Type == argo.FileProf {
			return f.Path
		}
	}
	return ""
}

func newestStamp(files []argo.RemoteFile) string {
	var stamp string
	for _, f := range files {
		if f.DateUpdate > stamp {
			stamp = f.DateUpdate
		}
	}
	return stamp
}

func (m *Manager) failedInRun(floatID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.failedThisRun[floatID]
	return ok
}

func (m *Manager) markRunFailure(floatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedThisRun[floatID] = struct{}{}
}

// SyncFloat downloads every file of the plan concurrently. The float
// counts as synced when the mandatory profile file is persisted;
// optional files that are missing remotely yield success-with-partial.
func (m *Manager) SyncFloat(ctx context.Context, plan FloatPlan) FloatSyncResult {
	res := FloatSyncResult{FloatID: plan.FloatID}
	log := m.logger.With("float_id", plan.FloatID)

	var (
		mu      sync.Mutex
		profErr error
		profOK  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.PerFloatConnections)

	for _, file := range plan.Files {
		file := file
		g.Go(func() error {
			if m.manifest.FileUpToDate(file.Path, plan.Stamp) {
				log.Debug(gctx, "file current, skipping", "path", file.Path)
				mu.Lock()
				res.FilesOK++
				if file.Type.Mandatory() {
					profOK = true
				}
				mu.Unlock()
				return nil
			}

			size, err := m.downloadFile(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.FilesMissing++
				if file.Type.Mandatory() {
					profErr = err
				}
				if errors.Is(err, common.ErrPermanentNotFound) && !file.Type.Mandatory() {
					log.Debug(gctx, "optional file absent", "path", file.Path)
				} else {
					log.Warn(gctx, "file download failed", "path", file.Path, "error", err)
				}
				return nil // per-file failures never cancel siblings
			}

			res.FilesOK++
			res.BytesTransferred += size
			if file.Type.Mandatory() {
				profOK = true
			}
			m.manifest.RecordFile(file.Path, plan.FloatID, plan.Stamp, size)
			return nil
		})
	}
	_ = g.Wait()

	if profOK {
		res.Success = true
		m.manifest.MarkDownloaded(plan.FloatID)
		m.Checkpoint(ctx)
		log.Info(ctx, "float synced",
			"files_ok", res.FilesOK, "files_missing", res.FilesMissing, "bytes", res.BytesTransferred)
		return res
	}

	if profErr == nil {
		profErr = fmt.Errorf("profile file missing from plan")
	}
	res.Err = fmt.Errorf("mandatory profile file: %w", profErr)
	m.manifest.MarkFailed(plan.FloatID, res.Err.Error())
	m.markRunFailure(plan.FloatID)
	m.Checkpoint(ctx)
	log.Warn(ctx, "float sync failed", "error", res.Err)
	return res
}

// SyncAll fetches the index, computes the pending set and syncs it under
// the global concurrency bound. The manifest is checkpointed every
// CheckpointEvery floats and once more at the end, so a crash loses at
// most one checkpoint window of progress.
func (m *Manager) SyncAll(ctx context.Context, targets []string) (Stats, error) {
	ix, err := m.source.Fetch(ctx)
	if err != nil {
		return Stats{}, err
	}

	plans := m.PlanSync(ix, targets)

	total := len(targets)
	if total == 0 {
		total = len(ix.Floats)
	}
	stats := Stats{Total: total, Skipped: total - len(plans)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrentFloats)

	for _, plan := range plans {
		plan := plan
		isNew := !m.manifest.Downloaded(plan.FloatID) && !m.manifest.Failed(plan.FloatID)
		g.Go(func() error {
			res := m.SyncFloat(gctx, plan)

			mu.Lock()
			if res.Success {
				stats.Downloaded++
				stats.Bytes += res.BytesTransferred
				if isNew {
					stats.New++
				}
			} else {
				stats.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.manifest.TouchLastSync()
	if err := m.manifest.Save(); err != nil {
		m.logger.Error(ctx, "manifest save failed", "error", err)
	}

	m.logger.Info(ctx, "sync complete",
		"total", stats.Total, "downloaded", stats.Downloaded, "new", stats.New,
		"skipped", stats.Skipped, "failed", stats.Failed, "bytes", stats.Bytes)
	return stats, nil
}

// Checkpoint counts one finished float and saves the manifest after
// every CheckpointEvery of them. SyncFloat calls it on each terminal
// outcome and ingest drivers call it after a committed upload, so a
// crash loses at most one checkpoint window of progress.
func (m *Manager) Checkpoint(ctx context.Context) {
	m.mu.Lock()
	m.sinceSave++
	due := m.cfg.CheckpointEvery > 0 && m.sinceSave >= m.cfg.CheckpointEvery
	if due {
		m.sinceSave = 0
	}
	m.mu.Unlock()

	if due {
		if err := m.manifest.Save(); err != nil {
			m.logger.Error(ctx, "manifest checkpoint failed", "error", err)
		}
	}
}

// trimBase joins URL parts without doubling slashes.
func trimBase(base, parts string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(parts, "/")
}

// Plan fetches the index and computes the pending download set.
func (m *Manager) Plan(ctx context.Context, targets []string) ([]FloatPlan, error) {
	ix, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return m.PlanSync(ix, targets), nil
}
