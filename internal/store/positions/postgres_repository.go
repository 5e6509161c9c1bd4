// Package positions keeps one row per float with its latest known
// position, derived from the newest ingested profile.
package positions

import (
	"context"
	"fmt"

	"github.com/oceanatlas/argosync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert replaces the float's current position, but never moves it
// backwards: an older profile re-ingested out of order must not
// overwrite a newer surfacing.
func (r *PostgresRepository) Upsert(ctx context.Context, pos *Position) error {
	query := `
		INSERT INTO argo_float_positions
			(float_id, current_lat, current_lon, cycle_number, last_update, last_temp, last_salinity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (float_id) DO UPDATE SET
			current_lat   = EXCLUDED.current_lat,
			current_lon   = EXCLUDED.current_lon,
			cycle_number  = EXCLUDED.cycle_number,
			last_update   = EXCLUDED.last_update,
			last_temp     = EXCLUDED.last_temp,
			last_salinity = EXCLUDED.last_salinity,
			updated_at    = now()
		WHERE argo_float_positions.last_update <= EXCLUDED.last_update;`

	_, err := r.db.ExecContext(ctx, query,
		pos.FloatID, pos.Latitude, pos.Longitude, pos.CycleNumber,
		pos.ProfileTime, pos.SurfaceTemp, pos.SurfaceSalinity)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", pos.FloatID, err)
	}
	return nil
}
