package resource

import (
	"sync/atomic"

	"github.com/quantbind/factor-runtime/errors"
)

// Token is the liveness flag of a guarded resource. Borrowing views keep a
// reference to it and check it before every engine call.
type Token struct {
	alive atomic.Bool
	kind  string
}

// Alive reports whether the owning guard still holds the resource.
func (t *Token) Alive() bool {
	return t.alive.Load()
}

// Kind returns the resource kind the token belongs to.
func (t *Token) Kind() string {
	return t.kind
}

// Check returns nil while the resource is alive, and a use-after-free error
// once it has been released.
func (t *Token) Check() error {
	if !t.alive.Load() {
		return errors.UseAfterFree(t.kind)
	}
	return nil
}

// Guard owns an opaque engine handle and releases it exactly once. The raw
// handle is only reachable through Handle, which fails after release; no
// copy of a released handle can escape the guard.
type Guard[H any] struct {
	handle  H
	release func(H)
	token   *Token
	freed   atomic.Bool
}

// NewGuard wraps a freshly acquired handle. kind names the resource in
// use-after-free errors ("executor", "library", "stream"). release may be
// nil for resources the engine reclaims implicitly.
func NewGuard[H any](kind string, handle H, release func(H)) *Guard[H] {
	g := &Guard[H]{
		handle:  handle,
		release: release,
		token:   &Token{kind: kind},
	}
	g.token.alive.Store(true)
	return g
}

// Handle returns the raw handle for passing into an engine call, or a
// use-after-free error once the guard has released it.
func (g *Guard[H]) Handle() (H, error) {
	if !g.token.alive.Load() {
		var zero H
		return zero, errors.UseAfterFree(g.token.kind)
	}
	return g.handle, nil
}

// Token returns the guard's liveness token for borrowing views.
func (g *Guard[H]) Token() *Token {
	return g.token
}

// Alive reports whether the guard still owns its resource.
func (g *Guard[H]) Alive() bool {
	return g.token.alive.Load()
}

// Release runs the release function exactly once and reports whether this
// call performed it. The token flips before the engine release runs, so
// borrowers observing a live token never race a dying handle.
func (g *Guard[H]) Release() bool {
	if !g.freed.CompareAndSwap(false, true) {
		return false
	}
	g.token.alive.Store(false)
	if g.release != nil {
		g.release(g.handle)
	}
	return true
}
