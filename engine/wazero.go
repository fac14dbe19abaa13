package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// WazeroEngine executes factor libraries compiled to WebAssembly. It is the
// portable backend: no native engine runtime required, same Engine surface.
//
// # Library convention
//
// A library file is a core wasm module exporting:
//
//	describe() -> i64            manifest pointer/length packed (ptr<<32 | len)
//	alloc(size: i32) -> i32      arena allocator for call scratch memory
//	reset()                      optional; resets the arena between calls
//	run(mod: i32, argv: i32, start: i32, length: i32, total: i32) -> i32
//	stream_new(mod: i32) -> i32          optional; 0 on failure
//	stream_push(ctx: i32, argv: i32) -> i32
//	stream_free(ctx: i32)
//
// The manifest is JSON naming each module and its buffer contract. For a run
// call the host copies each bound buffer densely into guest memory for the
// full history prefix, rows [0, start+length), so windowed factors observe
// the same data whether the range arrives in one window or many. Output rows
// [start, start+length) are copied back out afterwards.
//
// Guest calls are serialized on an internal lock; wazero instances are not
// safe for concurrent invocation. Concurrency across WazeroEngine instances
// is unrestricted.
type WazeroEngine struct {
	runtime wazero.Runtime
	objects map[Handle]any
	next    Handle
	mu      sync.Mutex
}

// WazeroConfig holds configuration for engine creation.
type WazeroConfig struct {
	// MemoryLimitPages caps guest memory per library in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// NewWazeroEngine creates a wazero-backed engine.
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a wazero-backed engine with custom configuration.
func NewWazeroEngineWithConfig(ctx context.Context, cfg *WazeroConfig) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		objects: make(map[Handle]any),
	}, nil
}

// Close tears down the wazero runtime and every loaded library.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.objects = make(map[Handle]any)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}

func (e *WazeroEngine) Name() string { return "wazero" }

type wzExecutor struct {
	threads int
}

type wzLibrary struct {
	inst       api.Module
	alloc      api.Function
	reset      api.Function
	run        api.Function
	streamNew  api.Function
	streamPush api.Function
	streamFree api.Function
	modules    []ModuleInfo
}

type wzModule struct {
	lib   *wzLibrary
	index int
}

type wzStream struct {
	lib    *wzLibrary
	modIdx int
	guest  uint32
}

func (e *WazeroEngine) insert(v any) Handle {
	e.next++
	h := e.next
	e.objects[h] = v
	return h
}

func (e *WazeroEngine) CreateExecutor(threads int) (Handle, Status) {
	if threads < 1 {
		return NilHandle, StatusBadBinding
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Guest execution always runs on the calling goroutine; the worker
	// count is recorded but does not parallelize this backend.
	return e.insert(&wzExecutor{threads: threads}), StatusOK
}

func (e *WazeroEngine) DestroyExecutor(h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.objects, h)
}

func (e *WazeroEngine) LoadLibrary(ctx context.Context, path string) (Handle, Status) {
	data, err := os.ReadFile(path)
	if err != nil {
		Logger().Warn("read factor library", zap.String("path", path), zap.Error(err))
		return NilHandle, StatusInternal
	}

	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		Logger().Warn("compile factor library", zap.String("path", path), zap.Error(err))
		return NilHandle, StatusInternal
	}

	inst, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return NilHandle, StatusInternal
	}

	lib := &wzLibrary{
		inst:       inst,
		alloc:      inst.ExportedFunction("alloc"),
		reset:      inst.ExportedFunction("reset"),
		run:        inst.ExportedFunction("run"),
		streamNew:  inst.ExportedFunction("stream_new"),
		streamPush: inst.ExportedFunction("stream_push"),
		streamFree: inst.ExportedFunction("stream_free"),
	}
	describe := inst.ExportedFunction("describe")
	if describe == nil || lib.alloc == nil || lib.run == nil {
		inst.Close(ctx)
		return NilHandle, StatusBadBinding
	}

	manifest, st := e.readManifest(ctx, inst, describe)
	if !st.OK() {
		inst.Close(ctx)
		return NilHandle, st
	}
	lib.modules = manifest

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insert(lib), StatusOK
}

func (e *WazeroEngine) readManifest(ctx context.Context, inst api.Module, describe api.Function) ([]ModuleInfo, Status) {
	res, err := describe.Call(ctx)
	if err != nil || len(res) == 0 {
		return nil, StatusInternal
	}
	ptr := uint32(res[0] >> 32)
	length := uint32(res[0])

	raw, ok := inst.Memory().Read(ptr, length)
	if !ok {
		return nil, StatusOutOfRange
	}

	var manifest struct {
		Modules []struct {
			Name    string `json:"name"`
			Buffers []struct {
				Name  string `json:"name"`
				Role  string `json:"role"`
				Shape string `json:"shape"`
				Lanes int    `json:"lanes"`
				Width int    `json:"width"`
			} `json:"buffers"`
		} `json:"modules"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		Logger().Warn("parse library manifest", zap.Error(err))
		return nil, StatusBadBinding
	}

	infos := make([]ModuleInfo, 0, len(manifest.Modules))
	for _, m := range manifest.Modules {
		info := ModuleInfo{Name: m.Name}
		for _, b := range m.Buffers {
			d := BufferDesc{Name: b.Name, Lanes: b.Lanes, ElemWidth: b.Width}
			if d.Lanes < 1 {
				d.Lanes = 1
			}
			if d.ElemWidth == 0 {
				d.ElemWidth = 4
			}
			switch b.Role {
			case "output":
				d.Role = RoleOutput
			case "inout":
				d.Role = RoleInOut
			default:
				d.Role = RoleInput
			}
			if b.Shape == "vector" || d.Lanes > 1 {
				d.Shape = ShapeVector
			}
			info.Buffers = append(info.Buffers, d)
		}
		infos = append(infos, info)
	}
	return infos, StatusOK
}

func (e *WazeroEngine) UnloadLibrary(h Handle) {
	e.mu.Lock()
	lib, ok := e.objects[h].(*wzLibrary)
	delete(e.objects, h)
	if ok {
		// Module handles are borrowed from the library; unloading reclaims them.
		for mh, v := range e.objects {
			if m, dep := v.(*wzModule); dep && m.lib == lib {
				delete(e.objects, mh)
			}
		}
	}
	e.mu.Unlock()
	if ok && lib.inst != nil {
		lib.inst.Close(context.Background())
	}
}

func (e *WazeroEngine) GetModule(libHandle Handle, name string) (Handle, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lib, ok := e.objects[libHandle].(*wzLibrary)
	if !ok {
		return NilHandle, StatusBadHandle
	}
	for i := range lib.modules {
		if lib.modules[i].Name == name {
			return e.insert(&wzModule{lib: lib, index: i}), StatusOK
		}
	}
	return NilHandle, StatusNoSuchModule
}

func (e *WazeroEngine) ModuleInfo(mod Handle) (ModuleInfo, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.objects[mod].(*wzModule)
	if !ok {
		return ModuleInfo{}, StatusBadHandle
	}
	return m.lib.modules[m.index], StatusOK
}

func (e *WazeroEngine) RunGraph(ctx context.Context, exec, mod Handle, bindings []Binding, batch Batch) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.objects[exec].(*wzExecutor); !ok {
		return StatusBadHandle
	}
	m, ok := e.objects[mod].(*wzModule)
	if !ok {
		return StatusBadHandle
	}
	lib := m.lib

	if lib.reset != nil {
		if _, err := lib.reset.Call(ctx); err != nil {
			return StatusInternal
		}
	}

	// Copy the history prefix in: rows [0, start+length) for every binding.
	rows := batch.Start + batch.Length
	ptrs := make([]uint32, len(bindings))
	for i, b := range bindings {
		ptr, st := e.copyIn(ctx, lib, b, rows)
		if !st.OK() {
			return st
		}
		ptrs[i] = ptr
	}

	argv, st := e.writeArgv(ctx, lib, ptrs)
	if !st.OK() {
		return st
	}

	res, err := lib.run.Call(ctx,
		uint64(m.index), uint64(argv),
		uint64(batch.Start), uint64(batch.Length), uint64(batch.TotalRows))
	if err != nil || len(res) == 0 {
		return StatusInternal
	}
	if st := Status(int32(res[0])); !st.OK() {
		return st
	}

	// Copy computed output rows back out.
	for i, b := range bindings {
		if !b.Role.Writable() {
			continue
		}
		if st := e.copyOut(lib, b, ptrs[i], batch.Start, batch.Length); !st.OK() {
			return st
		}
	}
	return StatusOK
}

func (e *WazeroEngine) CreateStream(exec, mod Handle) (Handle, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.objects[exec].(*wzExecutor); !ok {
		return NilHandle, StatusBadHandle
	}
	m, ok := e.objects[mod].(*wzModule)
	if !ok {
		return NilHandle, StatusBadHandle
	}
	if m.lib.streamNew == nil || m.lib.streamPush == nil {
		return NilHandle, StatusUnsupported
	}

	res, err := m.lib.streamNew.Call(context.Background(), uint64(m.index))
	if err != nil || len(res) == 0 || uint32(res[0]) == 0 {
		return NilHandle, StatusInternal
	}
	return e.insert(&wzStream{lib: m.lib, modIdx: m.index, guest: uint32(res[0])}), StatusOK
}

func (e *WazeroEngine) StreamPush(ctx context.Context, stream Handle, row []Binding) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.objects[stream].(*wzStream)
	if !ok {
		return StatusBadHandle
	}
	lib := s.lib

	if lib.reset != nil {
		if _, err := lib.reset.Call(ctx); err != nil {
			return StatusInternal
		}
	}

	ptrs := make([]uint32, len(row))
	for i, b := range row {
		ptr, st := e.copyIn(ctx, lib, b, 1)
		if !st.OK() {
			return st
		}
		ptrs[i] = ptr
	}
	argv, st := e.writeArgv(ctx, lib, ptrs)
	if !st.OK() {
		return st
	}

	res, err := lib.streamPush.Call(ctx, uint64(s.guest), uint64(argv))
	if err != nil || len(res) == 0 {
		return StatusInternal
	}
	if st := Status(int32(res[0])); !st.OK() {
		return st
	}

	for i, b := range row {
		if !b.Role.Writable() {
			continue
		}
		if st := e.copyOut(lib, b, ptrs[i], 0, 1); !st.OK() {
			return st
		}
	}
	return StatusOK
}

func (e *WazeroEngine) DestroyStream(h Handle) {
	e.mu.Lock()
	s, ok := e.objects[h].(*wzStream)
	delete(e.objects, h)
	e.mu.Unlock()
	if ok && s.lib.streamFree != nil {
		s.lib.streamFree.Call(context.Background(), uint64(s.guest))
	}
}

// copyIn allocates guest memory for rows dense rows of the binding and
// copies the caller's (possibly strided) data in. Returns the guest pointer.
func (e *WazeroEngine) copyIn(ctx context.Context, lib *wzLibrary, b Binding, rows int) (uint32, Status) {
	lanes := b.Lanes
	if lanes < 1 {
		lanes = 1
	}
	width := b.Span.ElemWidth()
	size := rows * lanes * width

	res, err := lib.alloc.Call(ctx, uint64(size))
	if err != nil || len(res) == 0 || uint32(res[0]) == 0 {
		return 0, StatusInternal
	}
	ptr := uint32(res[0])

	buf := make([]byte, size)
	switch width {
	case 4:
		data := b.Span.Data32()
		for r := 0; r < rows; r++ {
			off := b.Span.RowAt(r, lanes)
			for l := 0; l < lanes; l++ {
				binary.LittleEndian.PutUint32(buf[(r*lanes+l)*4:], math.Float32bits(data[off+l]))
			}
		}
	case 8:
		data := b.Span.Data64()
		for r := 0; r < rows; r++ {
			off := b.Span.RowAt(r, lanes)
			for l := 0; l < lanes; l++ {
				binary.LittleEndian.PutUint64(buf[(r*lanes+l)*8:], math.Float64bits(data[off+l]))
			}
		}
	default:
		return 0, StatusBadBinding
	}

	if !lib.inst.Memory().Write(ptr, buf) {
		return 0, StatusOutOfRange
	}
	return ptr, StatusOK
}

// copyOut reads rows [start, start+length) of a dense guest buffer back into
// the caller's span.
func (e *WazeroEngine) copyOut(lib *wzLibrary, b Binding, ptr uint32, start, length int) Status {
	lanes := b.Lanes
	if lanes < 1 {
		lanes = 1
	}
	width := b.Span.ElemWidth()

	raw, ok := lib.inst.Memory().Read(ptr+uint32(start*lanes*width), uint32(length*lanes*width))
	if !ok {
		return StatusOutOfRange
	}

	switch width {
	case 4:
		data := b.Span.Data32()
		for r := 0; r < length; r++ {
			off := b.Span.RowAt(start+r, lanes)
			for l := 0; l < lanes; l++ {
				data[off+l] = math.Float32frombits(binary.LittleEndian.Uint32(raw[(r*lanes+l)*4:]))
			}
		}
	case 8:
		data := b.Span.Data64()
		for r := 0; r < length; r++ {
			off := b.Span.RowAt(start+r, lanes)
			for l := 0; l < lanes; l++ {
				data[off+l] = math.Float64frombits(binary.LittleEndian.Uint64(raw[(r*lanes+l)*8:]))
			}
		}
	default:
		return StatusBadBinding
	}
	return StatusOK
}

func (e *WazeroEngine) writeArgv(ctx context.Context, lib *wzLibrary, ptrs []uint32) (uint32, Status) {
	res, err := lib.alloc.Call(ctx, uint64(4*len(ptrs)))
	if err != nil || len(res) == 0 || uint32(res[0]) == 0 {
		return 0, StatusInternal
	}
	argv := uint32(res[0])

	buf := make([]byte, 4*len(ptrs))
	for i, p := range ptrs {
		binary.LittleEndian.PutUint32(buf[i*4:], p)
	}
	if !lib.inst.Memory().Write(argv, buf) {
		return 0, StatusOutOfRange
	}
	return argv, StatusOK
}

var _ Engine = (*WazeroEngine)(nil)
