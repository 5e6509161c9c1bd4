// Package ingest drives the per-float pipeline: download, parse,
// upload, archive. Each float advances through an explicit state
// machine; one float's failure never stops the others, and only an
// unreachable index aborts a run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/logging"
	"github.com/oceanatlas/argosync/internal/manifest"
	"github.com/oceanatlas/argosync/internal/objstore"
	"github.com/oceanatlas/argosync/internal/parser"
	"github.com/oceanatlas/argosync/internal/store/ingestlog"
	"github.com/oceanatlas/argosync/internal/syncer"
	"github.com/oceanatlas/argosync/internal/upload"
)

// State names one stage of a float's pipeline.
type State string

const (
	StatePending     State = "PENDING"
	StateDownloading State = "DOWNLOADING"
	StateParsing     State = "PARSING"
	StateUploading   State = "UPLOADING"
	StateSucceeded   State = "SUCCEEDED"
	StateFailed      State = "FAILED"
)

// FloatOutcome is one float's final pipeline result.
type FloatOutcome struct {
	FloatID  string
	State    State
	Profiles int
	Duration time.Duration
	Err      error
}

// Summary aggregates a whole run.
type Summary struct {
	RunID           string
	Total           int
	Succeeded       int
	Failed          int
	ProfilesWritten int
	Duration        time.Duration
	Outcomes        []FloatOutcome
}

// Config carries the orchestrator tunables.
type Config struct {
	DAC                 string
	MaxConcurrentFloats int
	// SkipDownload ingests from already synced local files only.
	SkipDownload bool
	// ArchiveRaw copies synced files to object storage after ingest.
	ArchiveRaw bool
}

// floatSyncer is the slice of syncer.Manager the orchestrator uses.
type floatSyncer interface {
	Plan(ctx context.Context, targets []string) ([]syncer.FloatPlan, error)
	SyncFloat(ctx context.Context, plan syncer.FloatPlan) syncer.FloatSyncResult
	FloatDir(floatID string) string
	Manifest() *manifest.Manifest
	Checkpoint(ctx context.Context)
}

// fileParser is the slice of parser.Parser the orchestrator uses.
type fileParser interface {
	ParseMetadataFile(ctx context.Context, path, floatID string) (*argo.FloatMetadata, error)
	ParseProfilesFile(ctx context.Context, path, floatID string) ([]argo.ProfileRecord, parser.Stats, error)
}

// committer is the slice of upload.Pipeline the orchestrator uses.
type committer interface {
	Commit(ctx context.Context, md *argo.FloatMetadata, records []argo.ProfileRecord) (upload.Result, error)
	LogOutcome(ctx context.Context, e *ingestlog.Entry)
}

type Orchestrator struct {
	cfg      Config
	sync     floatSyncer
	parser   fileParser
	pipeline committer
	archiver *objstore.Archiver
	logger   logging.Logger
	now      func() time.Time
}

func NewOrchestrator(cfg Config, sync floatSyncer, p fileParser, pipeline committer, archiver *objstore.Archiver, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		sync:     sync,
		parser:   p,
		pipeline: pipeline,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// work is one scheduled float. A nil plan means the float's files are
// already local and only parse+upload run.
type work struct {
	floatID string
	plan    *syncer.FloatPlan
}

// Run executes one full ingestion pass. It returns an error only when
// the run as a whole cannot progress (index unreachable); per-float
// failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, targets []string) (Summary, error) {
	started := o.now()
	summary := Summary{RunID: uuid.NewString()}
	log := o.logger.With("run_id", summary.RunID)

	worklist, err := o.schedule(ctx, targets)
	if err != nil {
		return summary, fmt.Errorf("schedule run: %w", err)
	}
	summary.Total = len(worklist)
	log.Info(ctx, "run scheduled", "floats", summary.Total, "skip_download", o.cfg.SkipDownload)

	outcomes := make([]FloatOutcome, len(worklist))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentFloats)

	for i, w := range worklist {
		i, w := i, w
		g.Go(func() error {
			outcomes[i] = o.processFloat(gctx, summary.RunID, w)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		summary.Outcomes = append(summary.Outcomes, out)
		if out.State == StateSucceeded {
			summary.Succeeded++
			summary.ProfilesWritten += out.Profiles
		} else {
			summary.Failed++
		}
	}

	if err := o.sync.Manifest().Save(); err != nil {
		log.Error(ctx, "manifest save failed", "error", err)
	}

	summary.Duration = o.now().Sub(started)
	log.Info(ctx, "run complete",
		"total", summary.Total, "succeeded", summary.Succeeded,
		"failed", summary.Failed, "profiles", summary.ProfilesWritten,
		"duration", summary.Duration)
	return summary, nil
}

// schedule builds the worklist: floats needing a download plus floats
// downloaded earlier whose upload never completed. In skip-download
// mode only local data is considered.
func (o *Orchestrator) schedule(ctx context.Context, targets []string) ([]work, error) {
	mf := o.sync.Manifest()

	if o.cfg.SkipDownload {
		ids := targets
		if len(ids) == 0 {
			ids = mf.DownloadedFloats()
		}
		worklist := make([]work, 0, len(ids))
		for _, id := range ids {
			worklist = append(worklist, work{floatID: id})
		}
		return worklist, nil
	}

	plans, err := o.sync.Plan(ctx, targets)
	if err != nil {
		return nil, err
	}

	var worklist []work
	planned := make(map[string]struct{}, len(plans))
	for i := range plans {
		planned[plans[i].FloatID] = struct{}{}
		worklist = append(worklist, work{floatID: plans[i].FloatID, plan: &plans[i]})
	}
	// Floats synced in an earlier run whose upload failed: retry at the
	// upload stage without re-downloading.
	for _, id := range mf.PendingIngest() {
		if _, ok := planned[id]; ok {
			continue
		}
		if len(targets) > 0 && !contains(targets, id) {
			continue
		}
		worklist = append(worklist, work{floatID: id})
	}
	return worklist, nil
}

// processFloat advances one float through the pipeline and converts
// every failure into a FAILED outcome with an audit row.
func (o *Orchestrator) processFloat(ctx context.Context, runID string, w work) FloatOutcome {
	started := o.now()
	out := FloatOutcome{FloatID: w.floatID, State: StatePending}
	log := o.logger.With("run_id", runID, "float_id", w.floatID)

	fail := func(err error) FloatOutcome {
		out.State = StateFailed
		out.Err = err
		out.Duration = o.now().Sub(started)
		log.Warn(ctx, "float ingest failed", "error", err)
		o.pipeline.LogOutcome(ctx, &ingestlog.Entry{
			RunID:        runID,
			FloatID:      w.floatID,
			Operation:    "ingest",
			Status:       "error",
			Message:      err.Error(),
			ErrorDetails: map[string]any{"error": err.Error()},
			Duration:     out.Duration,
		})
		return out
	}

	if w.plan != nil {
		out.State = StateDownloading
		res := o.sync.SyncFloat(ctx, *w.plan)
		if !res.Success {
			return fail(fmt.Errorf("download: %w", res.Err))
		}
	}

	out.State = StateParsing
	dir := o.sync.FloatDir(w.floatID)
	records, _, err := o.parser.ParseProfilesFile(ctx, filepath.Join(dir, w.floatID+argo.FileProf.Suffix()), w.floatID)
	if err != nil {
		return fail(fmt.Errorf("parse profiles: %w", err))
	}

	// Metadata is optional: a missing or broken _meta.nc degrades to a
	// profiles-only commit.
	md, err := o.parser.ParseMetadataFile(ctx, filepath.Join(dir, w.floatID+argo.FileMeta.Suffix()), w.floatID)
	if err != nil {
		log.Debug(ctx, "metadata unavailable", "error", err)
		md = nil
	}

	out.State = StateUploading
	res, err := o.pipeline.Commit(ctx, md, records)
	if err != nil {
		return fail(fmt.Errorf("upload: %w", err))
	}
	out.Profiles = res.ProfilesWritten
	o.sync.Manifest().MarkIngested(w.floatID)
	o.sync.Checkpoint(ctx)

	if o.cfg.ArchiveRaw && o.archiver != nil {
		paths := make([]string, 0, len(argo.AggregateTypes))
		for _, f := range argo.AggregateFiles(o.cfg.DAC, w.floatID) {
			paths = append(paths, f.Path)
		}
		if n, err := o.archiver.ArchiveFloat(ctx, dir, paths); err != nil {
			log.Warn(ctx, "raw archive failed", "archived", n, "error", err)
		}
	}

	out.State = StateSucceeded
	out.Duration = o.now().Sub(started)
	log.Info(ctx, "float ingested", "profiles", out.Profiles, "duration", out.Duration)
	o.pipeline.LogOutcome(ctx, &ingestlog.Entry{
		RunID:     runID,
		FloatID:   w.floatID,
		Operation: "ingest",
		Status:    "success",
		Message:   fmt.Sprintf("%d profiles", out.Profiles),
		Duration:  out.Duration,
	})
	return out
}

// IsRunFatal reports whether an error from Run means the process should
// exit non-zero rather than retry next cycle.
func IsRunFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
