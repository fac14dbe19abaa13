// Package enginetest provides an in-memory engine.Engine for tests. Factor
// modules are registered as Go functions evaluated row by row, so batch and
// stream execution are equivalent by construction and tests can assert exact
// outputs without a compiled library on disk.
//
// The fake also counts calls per operation and supports one-shot fault
// injection, which lets tests prove that validation failures reach the
// engine zero times.
package enginetest

import (
	"context"
	"sync"

	"github.com/quantbind/factor-runtime/engine"
)

// RowFunc computes one time row. in maps readable buffer names to that
// row's lane values; the returned map carries lane values for writable
// buffers. Missing output names leave the caller's row untouched.
type RowFunc func(row int, in map[string][]float64) map[string][]float64

// ModuleDef declares one fake module: its buffer contract and per-row kernel.
type ModuleDef struct {
	Name    string
	Buffers []engine.BufferDesc
	Step    RowFunc
}

// LibraryDef is a set of modules registered under one library path.
type LibraryDef struct {
	Modules []ModuleDef
}

// Counters records how many times each engine operation ran.
type Counters struct {
	CreateExecutor int
	LoadLibrary    int
	GetModule      int
	ModuleInfo     int
	RunGraph       int
	CreateStream   int
	StreamPush     int
}

// Engine is the fake. Register libraries before use; all methods are safe
// for concurrent use.
type Engine struct {
	mu       sync.Mutex
	libs     map[string]LibraryDef
	objects  map[engine.Handle]any
	next     engine.Handle
	calls    Counters
	failNext map[string]engine.Status
}

type fakeExecutor struct{ threads int }

type fakeLibrary struct{ def LibraryDef }

type fakeModule struct {
	lib *fakeLibrary
	def ModuleDef
}

type fakeStream struct {
	mod  *fakeModule
	rows int
}

// New creates an empty fake engine.
func New() *Engine {
	return &Engine{
		libs:     make(map[string]LibraryDef),
		objects:  make(map[engine.Handle]any),
		failNext: make(map[string]engine.Status),
	}
}

// Register makes a library loadable at the given path.
func (e *Engine) Register(path string, def LibraryDef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.libs[path] = def
}

// Calls returns a snapshot of the operation counters.
func (e *Engine) Calls() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// FailNext arms a one-shot failure for the named operation ("RunGraph",
// "StreamPush", "CreateExecutor", "CreateStream", "LoadLibrary").
func (e *Engine) FailNext(op string, st engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext[op] = st
}

// Live returns the number of handles the engine still holds. Zero after a
// clean shutdown.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.objects)
}

func (e *Engine) takeFault(op string) (engine.Status, bool) {
	if st, ok := e.failNext[op]; ok {
		delete(e.failNext, op)
		return st, true
	}
	return engine.StatusOK, false
}

func (e *Engine) insert(v any) engine.Handle {
	e.next++
	e.objects[e.next] = v
	return e.next
}

func (e *Engine) Name() string { return "test" }

func (e *Engine) CreateExecutor(threads int) (engine.Handle, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.CreateExecutor++
	if st, ok := e.takeFault("CreateExecutor"); ok {
		return engine.NilHandle, st
	}
	return e.insert(&fakeExecutor{threads: threads}), engine.StatusOK
}

func (e *Engine) DestroyExecutor(h engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.objects, h)
}

func (e *Engine) LoadLibrary(_ context.Context, path string) (engine.Handle, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.LoadLibrary++
	if st, ok := e.takeFault("LoadLibrary"); ok {
		return engine.NilHandle, st
	}
	def, ok := e.libs[path]
	if !ok {
		return engine.NilHandle, engine.StatusInternal
	}
	return e.insert(&fakeLibrary{def: def}), engine.StatusOK
}

func (e *Engine) UnloadLibrary(h engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.objects[h].(*fakeLibrary)
	delete(e.objects, h)
	if !ok {
		return
	}
	// Module handles are borrowed from the library; unloading reclaims them.
	for mh, v := range e.objects {
		if m, ok := v.(*fakeModule); ok && m.lib == l {
			delete(e.objects, mh)
		}
	}
}

func (e *Engine) GetModule(lib engine.Handle, name string) (engine.Handle, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.GetModule++
	l, ok := e.objects[lib].(*fakeLibrary)
	if !ok {
		return engine.NilHandle, engine.StatusBadHandle
	}
	for _, m := range l.def.Modules {
		if m.Name == name {
			return e.insert(&fakeModule{lib: l, def: m}), engine.StatusOK
		}
	}
	return engine.NilHandle, engine.StatusNoSuchModule
}

func (e *Engine) ModuleInfo(mod engine.Handle) (engine.ModuleInfo, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.ModuleInfo++
	m, ok := e.objects[mod].(*fakeModule)
	if !ok {
		return engine.ModuleInfo{}, engine.StatusBadHandle
	}
	return engine.ModuleInfo{Name: m.def.Name, Buffers: m.def.Buffers}, engine.StatusOK
}

func (e *Engine) RunGraph(_ context.Context, exec, mod engine.Handle, bindings []engine.Binding, batch engine.Batch) engine.Status {
	e.mu.Lock()
	e.calls.RunGraph++
	if st, ok := e.takeFault("RunGraph"); ok {
		e.mu.Unlock()
		return st
	}
	if _, ok := e.objects[exec].(*fakeExecutor); !ok {
		e.mu.Unlock()
		return engine.StatusBadHandle
	}
	m, ok := e.objects[mod].(*fakeModule)
	e.mu.Unlock()
	if !ok {
		return engine.StatusBadHandle
	}

	for r := batch.Start; r < batch.Start+batch.Length; r++ {
		if st := stepRow(m.def, bindings, r, r); !st.OK() {
			return st
		}
	}
	return engine.StatusOK
}

func (e *Engine) CreateStream(exec, mod engine.Handle) (engine.Handle, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls.CreateStream++
	if st, ok := e.takeFault("CreateStream"); ok {
		return engine.NilHandle, st
	}
	if _, ok := e.objects[exec].(*fakeExecutor); !ok {
		return engine.NilHandle, engine.StatusBadHandle
	}
	m, ok := e.objects[mod].(*fakeModule)
	if !ok {
		return engine.NilHandle, engine.StatusBadHandle
	}
	return e.insert(&fakeStream{mod: m}), engine.StatusOK
}

func (e *Engine) StreamPush(_ context.Context, stream engine.Handle, row []engine.Binding) engine.Status {
	e.mu.Lock()
	e.calls.StreamPush++
	if st, ok := e.takeFault("StreamPush"); ok {
		e.mu.Unlock()
		return st
	}
	s, ok := e.objects[stream].(*fakeStream)
	e.mu.Unlock()
	if !ok {
		return engine.StatusBadHandle
	}

	st := stepRow(s.mod.def, row, 0, s.rows)
	if st.OK() {
		s.rows++
	}
	return st
}

func (e *Engine) DestroyStream(h engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.objects, h)
}

// stepRow evaluates the module kernel for one row. bufRow indexes into the
// bound spans; logicalRow is the row number the kernel observes (the running
// count for streams).
func stepRow(def ModuleDef, bindings []engine.Binding, bufRow, logicalRow int) engine.Status {
	in := make(map[string][]float64, len(bindings))
	for _, b := range bindings {
		if !b.Role.Readable() {
			continue
		}
		in[b.Name] = readRow(b, bufRow)
	}

	out := def.Step(logicalRow, in)

	for _, b := range bindings {
		if !b.Role.Writable() {
			continue
		}
		vals, ok := out[b.Name]
		if !ok {
			continue
		}
		writeRow(b, bufRow, vals)
	}
	return engine.StatusOK
}

func readRow(b engine.Binding, row int) []float64 {
	lanes := b.Lanes
	if lanes < 1 {
		lanes = 1
	}
	off := b.Span.RowAt(row, lanes)
	vals := make([]float64, lanes)
	if d := b.Span.Data64(); d != nil {
		copy(vals, d[off:off+lanes])
		return vals
	}
	d := b.Span.Data32()
	for l := 0; l < lanes; l++ {
		vals[l] = float64(d[off+l])
	}
	return vals
}

func writeRow(b engine.Binding, row int, vals []float64) {
	lanes := b.Lanes
	if lanes < 1 {
		lanes = 1
	}
	off := b.Span.RowAt(row, lanes)
	if d := b.Span.Data64(); d != nil {
		for l := 0; l < lanes && l < len(vals); l++ {
			d[off+l] = vals[l]
		}
		return
	}
	d := b.Span.Data32()
	for l := 0; l < lanes && l < len(vals); l++ {
		d[off+l] = float32(vals[l])
	}
}

var _ engine.Engine = (*Engine)(nil)
