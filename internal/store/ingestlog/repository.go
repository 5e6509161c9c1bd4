package ingestlog

import (
	"context"
	"time"
)

// Entry is one audit row describing a processing step outcome.
type Entry struct {
	RunID        string
	FloatID      string
	Operation    string
	Status       string
	Message      string
	ErrorDetails map[string]any
	Duration     time.Duration
}

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
}
