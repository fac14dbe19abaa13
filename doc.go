// Package factorruntime provides a memory-safe Go access layer over a
// precompiled factor computation engine.
//
// The engine itself is an opaque external component: it compiles data-flow
// graphs of numeric factor computations offline and executes them over named
// memory buffers. This library never looks inside a factor. It turns the
// engine's raw handles and raw buffer pointers into lifetime-checked,
// shape-checked objects and validates every call before it crosses the
// engine boundary.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	factorruntime/       Root package with the Span buffer view
//	├── runtime/         High-level API: Executor, Library, BufferMap, RunGraph
//	├── engine/          The engine boundary: ABI types and backends
//	├── enginetest/      Scriptable in-memory engine for tests
//	├── resource/        Handle guards and the live-resource registry
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Run a factor module over historical data:
//
//	rt := runtime.New(eng)
//	defer rt.Close(ctx)
//
//	exec, err := rt.SingleThreadExecutor()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	lib, err := rt.LoadLibrary(ctx, "factors/alpha.flib")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mod, err := lib.Module("alpha001")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buffers := runtime.NewBufferMap()
//	buffers.SetBufferSlice("close", closes)
//	buffers.SetBufferSlice("alpha001", out)
//
//	plan, _ := runtime.FullRange(rows, 32)
//	if err := runtime.RunGraph(ctx, exec, mod, buffers, plan); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Executor and Library/Module are safe for concurrent use. BufferMap and
// StreamContext are NOT thread-safe and should be confined to a single
// goroutine, or access must be synchronized.
//
// # Memory Model
//
// Buffers are always caller-owned. The library records borrowed views and
// never copies on the batch path; the caller's slices must stay alive for
// the duration of the call that uses them. The engine writes results
// directly into the caller's output buffers, so a failed multi-batch run
// leaves already-completed batches written as-is.
package factorruntime
