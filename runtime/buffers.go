package runtime

import (
	factorruntime "github.com/quantbind/factor-runtime"
	"github.com/quantbind/factor-runtime/errors"
)

// BufferMap binds buffer names to caller-owned memory for a run or stream
// call. It borrows; the caller's slices must stay alive and correctly sized
// until the call returns. Binding a name twice is an error, and the first
// binding stays in place.
//
// BufferMap is not safe for concurrent mutation.
type BufferMap struct {
	entries map[string]factorruntime.Span
	order   []string
}

// NewBufferMap creates an empty buffer map.
func NewBufferMap() *BufferMap {
	return &BufferMap{entries: make(map[string]factorruntime.Span)}
}

// SetBufferSlice binds a name to a dense float32 slice.
func (b *BufferMap) SetBufferSlice(name string, buf []float32) error {
	return b.SetSpan(name, factorruntime.Float32(buf))
}

// SetBufferSlice64 binds a name to a dense float64 slice.
func (b *BufferMap) SetBufferSlice64(name string, buf []float64) error {
	return b.SetSpan(name, factorruntime.Float64(buf))
}

// SetSpan binds a name to an arbitrary span, strided views included.
func (b *BufferMap) SetSpan(name string, s factorruntime.Span) error {
	if _, ok := b.entries[name]; ok {
		return errors.DuplicateBuffer(name)
	}
	b.entries[name] = s
	b.order = append(b.order, name)
	return nil
}

// Erase removes a binding, freeing the name for rebinding. Reports whether
// the name was bound.
func (b *BufferMap) Erase(name string) bool {
	if _, ok := b.entries[name]; !ok {
		return false
	}
	delete(b.entries, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the span bound to a name.
func (b *BufferMap) Get(name string) (factorruntime.Span, bool) {
	s, ok := b.entries[name]
	return s, ok
}

// Len returns the number of bound names.
func (b *BufferMap) Len() int {
	return len(b.entries)
}

// Names returns the bound names in binding order.
func (b *BufferMap) Names() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
