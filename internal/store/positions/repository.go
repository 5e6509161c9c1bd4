package positions

import (
	"context"
	"time"
)

// Position is a float's most recent surfacing.
type Position struct {
	FloatID         string
	Latitude        float64
	Longitude       float64
	CycleNumber     int
	ProfileTime     time.Time
	SurfaceTemp     *float64
	SurfaceSalinity *float64
}

type Repository interface {
	Upsert(ctx context.Context, pos *Position) error
}
