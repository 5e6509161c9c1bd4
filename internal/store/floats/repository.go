package floats

import (
	"context"

	"github.com/oceanatlas/argosync/internal/argo"
)

type Repository interface {
	Upsert(ctx context.Context, md *argo.FloatMetadata) error
}
