// Package logging defines the small structured-logging interface the
// workers log through. The only implementation in this repository wraps
// log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// alternating key-value pairs:
//
//	log.Info(ctx, "float synced", "float_id", id, "files", n)
type Logger interface {
	// Debug logs fine-grained progress (per-file downloads and the like).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs normal operation milestones.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given
	// key-value pairs.
	With(args ...any) Logger
}
