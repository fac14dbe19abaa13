package factorruntime

// Span is a borrowed view of caller-owned numeric memory. It records the
// backing slice, its element count, and an optional explicit row stride
// (elements between consecutive row starts). A Span never owns or copies
// the memory it describes; the caller's buffer must outlive every call the
// Span participates in.
//
// Exactly one of the float32 and float64 backings is set.
type Span struct {
	f32    []float32
	f64    []float64
	stride int
}

// Float32 creates a Span over a float32 slice.
func Float32(buf []float32) Span {
	return Span{f32: buf}
}

// Float64 creates a Span over a float64 slice.
func Float64(buf []float64) Span {
	return Span{f64: buf}
}

// WithStride returns a copy of the span with an explicit row stride in
// elements. Stride 0 means "dense": consecutive rows are adjacent.
func (s Span) WithStride(stride int) Span {
	s.stride = stride
	return s
}

// Len returns the element count of the backing slice.
func (s Span) Len() int {
	if s.f32 != nil {
		return len(s.f32)
	}
	return len(s.f64)
}

// Stride returns the explicit row stride, or 0 for dense layout.
func (s Span) Stride() int {
	return s.stride
}

// ElemWidth returns the element width in bytes (4 or 8), or 0 for the zero Span.
func (s Span) ElemWidth() int {
	switch {
	case s.f32 != nil:
		return 4
	case s.f64 != nil:
		return 8
	}
	return 0
}

// Data32 returns the float32 backing slice, or nil.
func (s Span) Data32() []float32 {
	return s.f32
}

// Data64 returns the float64 backing slice, or nil.
func (s Span) Data64() []float64 {
	return s.f64
}

// IsZero reports whether the span has no backing memory.
func (s Span) IsZero() bool {
	return s.f32 == nil && s.f64 == nil
}

// RowAt returns the element offset of row i given the row width in
// elements, honoring an explicit stride when set.
func (s Span) RowAt(i, lanes int) int {
	if s.stride > 0 {
		return i * s.stride
	}
	return i * lanes
}
