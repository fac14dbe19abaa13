package engine

import (
	"context"

	factorruntime "github.com/quantbind/factor-runtime"
)

// Handle is an opaque engine resource identifier. Handle 0 is never valid.
type Handle uintptr

// NilHandle is the engine's "no resource" sentinel.
const NilHandle Handle = 0

// Status is an engine status code. Zero means success; non-zero values are
// engine-defined and surfaced to callers verbatim.
type Status int32

const (
	StatusOK           Status = 0
	StatusBadHandle    Status = 1
	StatusNoSuchModule Status = 2
	StatusBadBinding   Status = 3
	StatusOutOfRange   Status = 4
	StatusUnsupported  Status = 5
	StatusInternal     Status = 6
)

// OK reports whether the status is success.
func (s Status) OK() bool {
	return s == StatusOK
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadHandle:
		return "bad_handle"
	case StatusNoSuchModule:
		return "no_such_module"
	case StatusBadBinding:
		return "bad_binding"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusUnsupported:
		return "unsupported"
	case StatusInternal:
		return "internal"
	}
	return "unknown"
}

// Role describes how a module uses a buffer.
type Role uint8

const (
	RoleInput Role = iota
	RoleOutput
	RoleInOut
)

func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleInOut:
		return "inout"
	}
	return "unknown"
}

// Readable reports whether the module reads the buffer.
func (r Role) Readable() bool { return r == RoleInput || r == RoleInOut }

// Writable reports whether the module writes the buffer.
func (r Role) Writable() bool { return r == RoleOutput || r == RoleInOut }

// Shape classifies a buffer's per-row layout.
type Shape uint8

const (
	// ShapeScalar is one element per time row.
	ShapeScalar Shape = iota
	// ShapeVector is a fixed-width vector of Lanes elements per time row.
	ShapeVector
)

func (s Shape) String() string {
	if s == ShapeVector {
		return "vector"
	}
	return "scalar"
}

// BufferDesc describes one named buffer of a module's contract.
type BufferDesc struct {
	Name      string
	Role      Role
	Shape     Shape
	Lanes     int // elements per row; 1 for scalar buffers
	ElemWidth int // element width in bytes: 4 or 8
}

// RowElems returns the number of elements one time row occupies.
func (d BufferDesc) RowElems() int {
	if d.Lanes > 1 {
		return d.Lanes
	}
	return 1
}

// ModuleInfo is a module's read-only metadata: its name and the ordered
// buffer contract the engine compiled it with.
type ModuleInfo struct {
	Name    string
	Buffers []BufferDesc
}

// Buffer returns the descriptor with the given name.
func (m ModuleInfo) Buffer(name string) (BufferDesc, bool) {
	for _, d := range m.Buffers {
		if d.Name == name {
			return d, true
		}
	}
	return BufferDesc{}, false
}

// Binding pairs one contract buffer with caller memory for a single engine
// call. Lanes and Role are copied from the module's descriptor by the
// caller; the engine trusts them (the runtime layer has already validated
// the span against the contract).
type Binding struct {
	Name  string
	Span  factorruntime.Span
	Lanes int
	Role  Role
}

// Batch describes one contiguous row window of a run call. TotalRows is the
// caller-declared extent of the buffers, which the engine needs for stride
// arithmetic.
type Batch struct {
	Start     int
	Length    int
	TotalRows int
}

// Engine is the narrow call boundary into a factor computation engine.
//
// All methods are safe for concurrent use; the engine's executor substrate
// is expected to tolerate concurrent run calls, including from distinct
// executors. Creation calls return NilHandle together with a non-zero
// status on failure and allocate nothing on that path.
type Engine interface {
	// Name identifies the backend ("native", "wazero", "test").
	Name() string

	// CreateExecutor creates an execution substrate with the given worker
	// count. threads is at least 1; the runtime layer rejects lower values.
	CreateExecutor(threads int) (Handle, Status)
	DestroyExecutor(h Handle)

	// LoadLibrary opens a compiled factor library file.
	LoadLibrary(ctx context.Context, path string) (Handle, Status)
	UnloadLibrary(h Handle)

	// GetModule resolves a named module inside a loaded library. The module
	// handle is only valid while the library is loaded.
	GetModule(lib Handle, name string) (Handle, Status)

	// ModuleInfo returns a module's buffer contract.
	ModuleInfo(mod Handle) (ModuleInfo, Status)

	// RunGraph executes one batch window. Bindings are given in the
	// module's contract order. The call blocks until the engine completes
	// or fails the window.
	RunGraph(ctx context.Context, exec, mod Handle, bindings []Binding, batch Batch) Status

	// CreateStream allocates per-module incremental state.
	CreateStream(exec, mod Handle) (Handle, Status)

	// StreamPush advances the stream by exactly one row. Each binding's
	// span holds one row (Lanes elements); output spans are written before
	// the call returns.
	StreamPush(ctx context.Context, stream Handle, row []Binding) Status
	DestroyStream(h Handle)
}
