// Package ingestlog writes the processing audit trail. Writes are
// best-effort at the call sites; a failed audit row never fails a run.
package ingestlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oceanatlas/argosync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) error {
	var details any
	if len(e.ErrorDetails) > 0 {
		b, err := json.Marshal(e.ErrorDetails)
		if err != nil {
			return fmt.Errorf("marshal error details: %w", err)
		}
		details = string(b)
	}

	query := `
		INSERT INTO ingest_log
			(run_id, float_id, operation, status, message, error_details, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7);`

	_, err := r.db.ExecContext(ctx, query,
		e.RunID, e.FloatID, e.Operation, e.Status, e.Message, details, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert ingest log %s/%s: %w", e.FloatID, e.Operation, err)
	}
	return nil
}
