// Package runtime is the safe layer over the factor engine. It owns every
// engine handle behind lifetime guards, validates buffer maps against module
// contracts before any engine call, and wraps engine status codes in
// structured errors.
//
// The entry point is Runtime, created over an engine backend:
//
//	rt := runtime.New(eng)
//	defer rt.Close(context.Background())
//
//	exec, _ := rt.SingleThreadExecutor()
//	lib, _ := rt.LoadLibrary(ctx, "factors.so")
//	mod, _ := lib.Module("alpha001")
//
//	buffers := runtime.NewBufferMap()
//	buffers.SetBufferSlice("close", closeData)
//	buffers.SetBufferSlice("out", output)
//
//	plan, _ := runtime.FullRange(totalRows, batchSize)
//	err := runtime.RunGraph(ctx, exec, mod, buffers, plan)
//
// Closing the Runtime releases everything it still tracks in reverse
// acquisition order. Individual resources can be closed earlier; operations
// through released resources fail with a use-after-free error and never
// reach the engine.
package runtime
