//go:build !linux && !darwin

package engine

import (
	"context"
	"errors"
)

// NativeEngine is unavailable on platforms without dlopen. Use the wazero
// backend instead. The type exists so callers cross-compile; every method
// reports StatusUnsupported.
type NativeEngine struct{}

func NewNativeEngine(path string) (*NativeEngine, error) {
	return nil, errors.New("native engine runtime is not supported on this platform")
}

func (e *NativeEngine) Name() string { return "native" }

func (e *NativeEngine) CreateExecutor(int) (Handle, Status) { return NilHandle, StatusUnsupported }
func (e *NativeEngine) DestroyExecutor(Handle)              {}

func (e *NativeEngine) LoadLibrary(context.Context, string) (Handle, Status) {
	return NilHandle, StatusUnsupported
}
func (e *NativeEngine) UnloadLibrary(Handle) {}

func (e *NativeEngine) GetModule(Handle, string) (Handle, Status) {
	return NilHandle, StatusUnsupported
}

func (e *NativeEngine) ModuleInfo(Handle) (ModuleInfo, Status) {
	return ModuleInfo{}, StatusUnsupported
}

func (e *NativeEngine) RunGraph(context.Context, Handle, Handle, []Binding, Batch) Status {
	return StatusUnsupported
}

func (e *NativeEngine) CreateStream(Handle, Handle) (Handle, Status) {
	return NilHandle, StatusUnsupported
}

func (e *NativeEngine) StreamPush(context.Context, Handle, []Binding) Status {
	return StatusUnsupported
}

func (e *NativeEngine) DestroyStream(Handle) {}

var _ Engine = (*NativeEngine)(nil)
