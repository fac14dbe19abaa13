//go:build linux || darwin

package engine

import (
	"context"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
)

// NativeEngine binds a shared-object engine runtime through dlopen. It is
// the production backend: the vectorized kernels, the thread pool, and all
// stream state live on the native side, and this type only marshals calls
// across the boundary.
//
// The native runtime is loaded once per path; NewNativeEngine with the same
// path returns a view over the same loaded object.
type NativeEngine struct {
	lib uintptr

	createExecutor  func(int32) uintptr
	destroyExecutor func(uintptr)
	loadLibrary     func(string) uintptr
	unloadLibrary   func(uintptr)
	getModule       func(uintptr, string) uintptr
	moduleName      func(uintptr) string
	bufferCount     func(uintptr) int32
	bufferDesc      func(uintptr, int32, *nativeDesc) int32
	runGraph        func(uintptr, uintptr, *nativeBinding, int32, int64, int64, int64) int32
	createStream    func(uintptr, uintptr) uintptr
	streamPush      func(uintptr, *nativeBinding, int32) int32
	destroyStream   func(uintptr)
}

// nativeDesc mirrors the runtime's fr_buffer_desc struct.
type nativeDesc struct {
	name  [64]byte
	role  int32
	lanes int32
	width int32
	_     int32
}

// nativeBinding mirrors the runtime's fr_binding struct. The name field is a
// pointer to a NUL-terminated string owned by the caller for the duration of
// the call.
type nativeBinding struct {
	name   uintptr
	data   uintptr
	elems  int64
	stride int64
	width  int32
	_      int32
}

var (
	nativeMu   sync.Mutex
	nativeLibs = make(map[string]*NativeEngine)
)

// NewNativeEngine loads the engine runtime shared object at path and binds
// its entry points. Loading the same path twice returns the cached engine;
// the native runtime does not tolerate being initialized twice in a process.
func NewNativeEngine(path string) (*NativeEngine, error) {
	nativeMu.Lock()
	defer nativeMu.Unlock()

	if e, ok := nativeLibs[path]; ok {
		return e, nil
	}

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}

	e := &NativeEngine{lib: lib}
	purego.RegisterLibFunc(&e.createExecutor, lib, "fr_create_executor")
	purego.RegisterLibFunc(&e.destroyExecutor, lib, "fr_destroy_executor")
	purego.RegisterLibFunc(&e.loadLibrary, lib, "fr_load_library")
	purego.RegisterLibFunc(&e.unloadLibrary, lib, "fr_unload_library")
	purego.RegisterLibFunc(&e.getModule, lib, "fr_get_module")
	purego.RegisterLibFunc(&e.moduleName, lib, "fr_module_name")
	purego.RegisterLibFunc(&e.bufferCount, lib, "fr_module_buffer_count")
	purego.RegisterLibFunc(&e.bufferDesc, lib, "fr_module_buffer")
	purego.RegisterLibFunc(&e.runGraph, lib, "fr_run_graph")
	purego.RegisterLibFunc(&e.createStream, lib, "fr_create_stream")
	purego.RegisterLibFunc(&e.streamPush, lib, "fr_stream_push")
	purego.RegisterLibFunc(&e.destroyStream, lib, "fr_destroy_stream")

	nativeLibs[path] = e
	Logger().Info("native engine runtime loaded", zap.String("path", path))
	return e, nil
}

func (e *NativeEngine) Name() string { return "native" }

func (e *NativeEngine) CreateExecutor(threads int) (Handle, Status) {
	h := e.createExecutor(int32(threads))
	if h == 0 {
		return NilHandle, StatusInternal
	}
	return Handle(h), StatusOK
}

func (e *NativeEngine) DestroyExecutor(h Handle) {
	e.destroyExecutor(uintptr(h))
}

func (e *NativeEngine) LoadLibrary(_ context.Context, path string) (Handle, Status) {
	h := e.loadLibrary(path)
	if h == 0 {
		return NilHandle, StatusInternal
	}
	return Handle(h), StatusOK
}

func (e *NativeEngine) UnloadLibrary(h Handle) {
	e.unloadLibrary(uintptr(h))
}

func (e *NativeEngine) GetModule(lib Handle, name string) (Handle, Status) {
	h := e.getModule(uintptr(lib), name)
	if h == 0 {
		return NilHandle, StatusNoSuchModule
	}
	return Handle(h), StatusOK
}

func (e *NativeEngine) ModuleInfo(mod Handle) (ModuleInfo, Status) {
	n := e.bufferCount(uintptr(mod))
	if n < 0 {
		return ModuleInfo{}, StatusBadHandle
	}

	info := ModuleInfo{Name: e.moduleName(uintptr(mod))}
	for i := int32(0); i < n; i++ {
		var d nativeDesc
		if st := Status(e.bufferDesc(uintptr(mod), i, &d)); !st.OK() {
			return ModuleInfo{}, st
		}
		desc := BufferDesc{
			Name:      cString(d.name[:]),
			Role:      Role(d.role),
			Lanes:     int(d.lanes),
			ElemWidth: int(d.width),
		}
		if desc.Lanes < 1 {
			desc.Lanes = 1
		}
		if desc.Lanes > 1 {
			desc.Shape = ShapeVector
		}
		info.Buffers = append(info.Buffers, desc)
	}
	return info, StatusOK
}

func (e *NativeEngine) RunGraph(_ context.Context, exec, mod Handle, bindings []Binding, batch Batch) Status {
	nat, names := packBindings(bindings)
	var head *nativeBinding
	if len(nat) > 0 {
		head = &nat[0]
	}
	st := Status(e.runGraph(uintptr(exec), uintptr(mod), head, int32(len(nat)),
		int64(batch.Start), int64(batch.Length), int64(batch.TotalRows)))
	runtime.KeepAlive(bindings)
	runtime.KeepAlive(names)
	return st
}

func (e *NativeEngine) CreateStream(exec, mod Handle) (Handle, Status) {
	h := e.createStream(uintptr(exec), uintptr(mod))
	if h == 0 {
		return NilHandle, StatusInternal
	}
	return Handle(h), StatusOK
}

func (e *NativeEngine) StreamPush(_ context.Context, stream Handle, row []Binding) Status {
	nat, names := packBindings(row)
	var head *nativeBinding
	if len(nat) > 0 {
		head = &nat[0]
	}
	st := Status(e.streamPush(uintptr(stream), head, int32(len(nat))))
	runtime.KeepAlive(row)
	runtime.KeepAlive(names)
	return st
}

func (e *NativeEngine) DestroyStream(h Handle) {
	e.destroyStream(uintptr(h))
}

// packBindings flattens bindings into the native struct layout. The returned
// name storage must be kept alive across the native call.
func packBindings(bindings []Binding) ([]nativeBinding, [][]byte) {
	nat := make([]nativeBinding, len(bindings))
	names := make([][]byte, len(bindings))
	for i, b := range bindings {
		names[i] = append([]byte(b.Name), 0)
		nat[i] = nativeBinding{
			name:   uintptr(unsafe.Pointer(&names[i][0])),
			elems:  int64(b.Span.Len()),
			stride: int64(b.Span.Stride()),
			width:  int32(b.Span.ElemWidth()),
		}
		switch {
		case b.Span.ElemWidth() == 4 && b.Span.Len() > 0:
			nat[i].data = uintptr(unsafe.Pointer(&b.Span.Data32()[0]))
		case b.Span.ElemWidth() == 8 && b.Span.Len() > 0:
			nat[i].data = uintptr(unsafe.Pointer(&b.Span.Data64()[0]))
		}
	}
	return nat, names
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

var _ Engine = (*NativeEngine)(nil)
