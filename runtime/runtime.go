package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/resource"
)

// Runtime owns an engine backend and tracks every resource acquired through
// it. All methods are safe for concurrent use.
type Runtime struct {
	eng       engine.Engine
	resources *resource.Registry
	logger    *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger installs a logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runtime over an engine backend.
func New(eng engine.Engine, opts ...Option) *Runtime {
	r := &Runtime{
		eng:       eng,
		resources: resource.NewRegistry(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the backend this runtime drives.
func (r *Runtime) Engine() engine.Engine {
	return r.eng
}

// Resources returns the live-resource registry, for leak checks and
// lifecycle observers.
func (r *Runtime) Resources() *resource.Registry {
	return r.resources
}

// Close releases every resource the runtime still tracks in reverse
// acquisition order (streams, then libraries, then executors) and shuts the
// engine down if the backend supports it. Resources already closed by their
// owners are skipped. Close is idempotent.
func (r *Runtime) Close(ctx context.Context) error {
	n := r.resources.Len()
	if n > 0 {
		r.logger.Debug("releasing leftover resources", zap.Int("count", n))
	}
	if err := r.resources.Close(); err != nil {
		return err
	}
	if c, ok := r.eng.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
