// Package profiles persists profile records with their measurement
// arrays. The natural key is (float_id, cycle); re-ingesting a cycle
// overwrites it in place.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oceanatlas/argosync/internal/argo"
	"github.com/oceanatlas/argosync/internal/dbx"
)

// chunkSize bounds one multi-row INSERT. 8 columns per row keeps this
// well under the 65535 bind-parameter ceiling.
const chunkSize = 500

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertBatch writes records as multi-row upserts and returns the
// number of rows written.
func (r *PostgresRepository) UpsertBatch(ctx context.Context, records []argo.ProfileRecord) (int, error) {
	written := 0
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		n, err := r.upsertChunk(ctx, records[start:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (r *PostgresRepository) upsertChunk(ctx context.Context, records []argo.ProfileRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	const cols = 8
	values := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*cols)

	for i, rec := range records {
		measurements, err := json.Marshal(rec.Measurements)
		if err != nil {
			return 0, fmt.Errorf("marshal measurements float %s cycle %d: %w", rec.FloatID, rec.CycleNumber, err)
		}
		base := i * cols
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d::jsonb)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args,
			rec.FloatID, rec.CycleNumber, rec.ProfileTime,
			rec.Latitude, rec.Longitude, rec.MaxDepth,
			string(rec.QualityStatus), measurements)
	}

	query := `
		INSERT INTO argo_profiles
			(float_id, cycle, profile_time, surface_lat, surface_lon, max_depth, quality_flag, measurements)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (float_id, cycle) DO UPDATE SET
			profile_time = EXCLUDED.profile_time,
			surface_lat  = EXCLUDED.surface_lat,
			surface_lon  = EXCLUDED.surface_lon,
			max_depth    = EXCLUDED.max_depth,
			quality_flag = EXCLUDED.quality_flag,
			measurements = EXCLUDED.measurements;`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("upsert %d profiles: %w", len(records), err)
	}
	return len(records), nil
}
