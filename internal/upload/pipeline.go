// Package upload commits parsed float data to PostgreSQL. One float's
// metadata, profiles and derived current position land in a single
// transaction; the audit log is written outside it so a failed run
// still leaves a trace.
package upload

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/dbx"
	"github.com/oceanatlas/argosync/internal/logging"
	"github.com/oceanatlas/argosync/internal/store/ingestlog"
	"github.com/oceanatlas/argosync/internal/store/positions"
	"github.com/oceanatlas/argosync/internal/store/repomanager"
)

// Result reports what one commit wrote.
type Result struct {
	ProfilesWritten int
	MetadataWritten bool
	PositionWritten bool
}

// Pipeline owns the database handle and the repository factories.
type Pipeline struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewPipeline(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *Pipeline {
	return &Pipeline{db: db, repos: repos, logger: logger}
}

// Migrate brings the schema up to date.
func (p *Pipeline) Migrate(ctx context.Context) error {
	return p.repos.RunMigrations(ctx, p.db)
}

// Commit writes one float's data transactionally. Metadata is optional;
// profiles are not. The current-position row is derived from the profile
// with the newest timestamp.
func (p *Pipeline) Commit(ctx context.Context, md *argo.FloatMetadata, records []argo.ProfileRecord) (Result, error) {
	var res Result
	if len(records) == 0 && md == nil {
		return res, fmt.Errorf("nothing to commit")
	}

	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if md != nil {
			if err := p.repos.Floats(tx).Upsert(ctx, md); err != nil {
				return err
			}
			res.MetadataWritten = true
		}

		if len(records) > 0 {
			n, err := p.repos.Profiles(tx).UpsertBatch(ctx, records)
			if err != nil {
				return err
			}
			res.ProfilesWritten = n

			if pos := latestPosition(records); pos != nil {
				if err := p.repos.Positions(tx).Upsert(ctx, pos); err != nil {
					return err
				}
				res.PositionWritten = true
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("commit float data: %w", err)
	}

	p.logger.Info(ctx, "float data committed",
		"profiles", res.ProfilesWritten,
		"metadata", res.MetadataWritten,
		"position", res.PositionWritten)
	return res, nil
}

// LogOutcome appends an audit row in its own implicit transaction.
// Failures are logged and swallowed: audit must never fail ingestion.
func (p *Pipeline) LogOutcome(ctx context.Context, e *ingestlog.Entry) {
	if err := p.repos.IngestLog(p.db).Insert(ctx, e); err != nil {
		p.logger.Warn(ctx, "audit log write failed",
			"float_id", e.FloatID, "operation", e.Operation, "error", err)
	}
}

// latestPosition derives the float's current position from the newest
// profile. Surface temperature and salinity come from the shallowest
// retained measurement.
func latestPosition(records []argo.ProfileRecord) *positions.Position {
	var latest *argo.ProfileRecord
	for i := range records {
		if latest == nil || records[i].ProfileTime.After(latest.ProfileTime) {
			latest = &records[i]
		}
	}
	if latest == nil {
		return nil
	}

	pos := &positions.Position{
		FloatID:     latest.FloatID,
		Latitude:    latest.Latitude,
		Longitude:   latest.Longitude,
		CycleNumber: latest.CycleNumber,
		ProfileTime: latest.ProfileTime,
	}
	if m := shallowest(latest.Measurements); m != nil {
		pos.SurfaceTemp = m.Temperature
		pos.SurfaceSalinity = m.Salinity
	}
	return pos
}

func shallowest(ms []argo.Measurement) *argo.Measurement {
	var best *argo.Measurement
	for i := range ms {
		if best == nil || ms[i].Depth < best.Depth {
			best = &ms[i]
		}
	}
	return best
}
