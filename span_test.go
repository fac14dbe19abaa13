package factorruntime

import "testing"

func TestSpan_Widths(t *testing.T) {
	s32 := Float32(make([]float32, 6))
	if s32.ElemWidth() != 4 || s32.Len() != 6 {
		t.Fatalf("float32 span: width %d len %d", s32.ElemWidth(), s32.Len())
	}
	s64 := Float64(make([]float64, 3))
	if s64.ElemWidth() != 8 || s64.Len() != 3 {
		t.Fatalf("float64 span: width %d len %d", s64.ElemWidth(), s64.Len())
	}

	var zero Span
	if !zero.IsZero() || zero.ElemWidth() != 0 || zero.Len() != 0 {
		t.Fatal("zero span misreported")
	}
}

func TestSpan_RowAt(t *testing.T) {
	dense := Float32(make([]float32, 12))
	if off := dense.RowAt(3, 4); off != 12 {
		t.Fatalf("dense RowAt(3,4) = %d, want 12", off)
	}

	strided := Float32(make([]float32, 40)).WithStride(10)
	if off := strided.RowAt(3, 4); off != 30 {
		t.Fatalf("strided RowAt(3,4) = %d, want 30", off)
	}
	if strided.Stride() != 10 {
		t.Fatalf("Stride = %d", strided.Stride())
	}
}

func TestSpan_Backings(t *testing.T) {
	buf := []float32{1, 2}
	s := Float32(buf)
	if s.Data32()[1] != 2 || s.Data64() != nil {
		t.Fatal("wrong backing exposed")
	}
	// The span borrows; writes through the backing are visible.
	buf[1] = 9
	if s.Data32()[1] != 9 {
		t.Fatal("span copied instead of borrowing")
	}
}
