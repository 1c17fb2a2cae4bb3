package reverter

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// Archiver mirrors a finalized checkpoint somewhere off-host. walk visits every
// file stored in the checkpoint.
type Archiver interface {
	Archive(ctx context.Context, id string, walk func(visit func(name string, r io.Reader) error) error) error
}

// Option configures a Reverter.
type Option func(*Reverter)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reverter) {
		if l != nil {
			r.logger = l.With(logger.Component("reverter"))
		}
	}
}

// WithArchiver enables off-host copies of finalized checkpoints.
func WithArchiver(a Archiver) Option {
	return func(r *Reverter) {
		r.archiver = a
	}
}

// WithArchiveTimeout bounds a single archive upload. Defaults to 30 seconds.
func WithArchiveTimeout(d time.Duration) Option {
	return func(r *Reverter) {
		if d > 0 {
			r.archiveTimeout = d
		}
	}
}
