package profiles

import (
	"context"

	"github.com/oceanatlas/argosync/internal/argo"
)

type Repository interface {
	UpsertBatch(ctx context.Context, records []argo.ProfileRecord) (int, error)
}
