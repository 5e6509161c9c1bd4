// Package floats persists float deployment metadata keyed by the
// archive's WMO float identifier.
package floats

import (
	"context"
	"fmt"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or refreshes one float's metadata. COALESCE keeps
// previously stored values when a re-parse yields fewer fields.
func (r *PostgresRepository) Upsert(ctx context.Context, md *argo.FloatMetadata) error {
	query := `
		INSERT INTO argo_float_metadata
			(float_id, float_type, deployment_date, deployment_lat, deployment_lon, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (float_id) DO UPDATE SET
			float_type      = COALESCE(EXCLUDED.float_type, argo_float_metadata.float_type),
			deployment_date = COALESCE(EXCLUDED.deployment_date, argo_float_metadata.deployment_date),
			deployment_lat  = COALESCE(EXCLUDED.deployment_lat, argo_float_metadata.deployment_lat),
			deployment_lon  = COALESCE(EXCLUDED.deployment_lon, argo_float_metadata.deployment_lon),
			status          = EXCLUDED.status,
			updated_at      = now();`

	_, err := r.db.ExecContext(ctx, query,
		md.FloatID, md.Model, md.LaunchDate, md.LaunchLat, md.LaunchLon, md.DeploymentStatus)
	if err != nil {
		return fmt.Errorf("upsert float metadata %s: %w", md.FloatID, err)
	}
	return nil
}
