// Package resource provides ownership primitives for opaque engine handles.
//
// A Guard owns one handle and guarantees its release function runs exactly
// once; after release, every attempt to obtain the handle fails with a
// use-after-free error instead of reaching the engine. Dependent views that
// borrow a resource without owning it (a module borrowing its library, a
// stream borrowing its executor) hold the guard's Token and check it on
// every use.
//
// A Registry keeps the set of live guards in acquisition order so a runtime
// can release leftovers in reverse order on shutdown and so tests can assert
// nothing leaked.
package resource
