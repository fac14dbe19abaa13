package runtime

import (
	"go.uber.org/zap"

	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/errors"
	"github.com/quantbind/factor-runtime/resource"
)

// Executor is an owned execution substrate. It is safe for concurrent use:
// multiple goroutines may run graphs through the same executor, and the
// engine schedules them on its worker pool.
type Executor struct {
	rt      *Runtime
	guard   *resource.Guard[engine.Handle]
	regID   uint64
	threads int
}

// SingleThreadExecutor creates an executor that runs graphs on the calling
// thread.
func (r *Runtime) SingleThreadExecutor() (*Executor, error) {
	return r.MultiThreadExecutor(1)
}

// MultiThreadExecutor creates an executor backed by a pool of the given
// worker count. threads below 1 is rejected locally without touching the
// engine.
func (r *Runtime) MultiThreadExecutor(threads int) (*Executor, error) {
	if threads < 1 {
		return nil, errors.InvalidArgument("executor thread count %d, want at least 1", threads)
	}

	h, st := r.eng.CreateExecutor(threads)
	if !st.OK() {
		return nil, errors.EngineInitFailed("executor", int32(st))
	}

	e := &Executor{
		rt:      r,
		threads: threads,
		guard:   resource.NewGuard("executor", h, r.eng.DestroyExecutor),
	}
	e.regID = r.resources.Add("executor", e.guard.Release)
	if e.regID == 0 {
		// Runtime already closed; do not hand out an untracked handle.
		e.guard.Release()
		return nil, errors.AcquisitionFailed("executor on a closed runtime")
	}
	r.logger.Debug("executor created", zap.Int("threads", threads))
	return e, nil
}

// Threads returns the worker count the executor was created with.
func (e *Executor) Threads() int {
	return e.threads
}

// Alive reports whether the executor still owns its engine handle.
func (e *Executor) Alive() bool {
	return e.guard.Alive()
}

// Close releases the executor. Idempotent; afterwards every run through it
// fails with a use-after-free error.
func (e *Executor) Close() error {
	e.rt.resources.Release(e.regID)
	e.guard.Release()
	return nil
}

func (e *Executor) handle() (engine.Handle, error) {
	return e.guard.Handle()
}
