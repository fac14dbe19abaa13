package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/errors"
	"github.com/quantbind/factor-runtime/resource"
)

// Library is an owned, loaded factor library. Modules resolved from it stay
// valid only while the library is loaded.
type Library struct {
	rt    *Runtime
	guard *resource.Guard[engine.Handle]
	regID uint64
	path  string
}

// LoadLibrary loads a compiled factor library from disk. On failure nothing
// is allocated.
func (r *Runtime) LoadLibrary(ctx context.Context, path string) (*Library, error) {
	h, st := r.eng.LoadLibrary(ctx, path)
	if !st.OK() {
		return nil, errors.LoadFailed(path, errors.EngineInitFailed("library", int32(st)))
	}

	l := &Library{
		rt:    r,
		path:  path,
		guard: resource.NewGuard("library", h, r.eng.UnloadLibrary),
	}
	l.regID = r.resources.Add("library", l.guard.Release)
	if l.regID == 0 {
		l.guard.Release()
		return nil, errors.AcquisitionFailed("library on a closed runtime")
	}
	r.logger.Debug("library loaded", zap.String("path", path))
	return l, nil
}

// Path returns the file path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Alive reports whether the library is still loaded.
func (l *Library) Alive() bool {
	return l.guard.Alive()
}

// Close unloads the library. Idempotent; modules resolved from it become
// unusable and report use-after-free.
func (l *Library) Close() error {
	l.rt.resources.Release(l.regID)
	l.guard.Release()
	return nil
}

// Module resolves a named module and fetches its buffer contract eagerly, so
// later validation never calls into the engine for metadata.
func (l *Library) Module(name string) (*Module, error) {
	h, err := l.guard.Handle()
	if err != nil {
		return nil, err
	}

	mh, st := l.rt.eng.GetModule(h, name)
	if !st.OK() {
		if st == engine.StatusNoSuchModule {
			return nil, errors.ModuleNotFound(name)
		}
		return nil, errors.EngineFailure(errors.PhaseLoad, name, int32(st), "resolve module")
	}

	info, st := l.rt.eng.ModuleInfo(mh)
	if !st.OK() {
		return nil, errors.EngineFailure(errors.PhaseLoad, name, int32(st), "read module contract")
	}

	return &Module{
		lib:      l,
		handle:   mh,
		libToken: l.guard.Token(),
		info:     info,
	}, nil
}

// Module is a borrowed view into a loaded library: a resolved graph plus its
// buffer contract. It holds no resource of its own; its validity follows the
// library's.
type Module struct {
	lib      *Library
	handle   engine.Handle
	libToken *resource.Token
	info     engine.ModuleInfo
}

// Name returns the module's name inside its library.
func (m *Module) Name() string {
	return m.info.Name
}

// Info returns the module's buffer contract.
func (m *Module) Info() engine.ModuleInfo {
	return m.info
}

// Library returns the owning library.
func (m *Module) Library() *Library {
	return m.lib
}

// engineHandle returns the raw module handle after checking the owning
// library is still loaded.
func (m *Module) engineHandle() (engine.Handle, error) {
	if err := m.libToken.Check(); err != nil {
		return engine.NilHandle, err
	}
	return m.handle, nil
}
