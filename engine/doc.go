// Package engine defines the boundary with the factor computation engine.
//
// The boundary is deliberately narrow and C-shaped: opaque handles, flat
// binding tuples, and integer status codes. Everything above this package
// (the runtime layer) deals in validated, lifetime-checked objects;
// everything below it is the engine's business.
//
// Two backends are provided. The native backend binds a shared-object engine
// runtime through dlopen and carries the real vectorized kernels. The wazero
// backend executes factor libraries compiled to WebAssembly and exists for
// platforms without the native runtime and for hermetic environments; it
// trades speed for portability behind the same interface.
//
// Status codes from the engine are never interpreted here; they are carried
// upward verbatim for the runtime layer to wrap with context.
package engine
