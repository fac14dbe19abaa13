package runtime

import (
	"testing"

	factorruntime "github.com/quantbind/factor-runtime"
	frerrors "github.com/quantbind/factor-runtime/errors"
)

func TestBufferMap_DuplicateKeepsFirst(t *testing.T) {
	m := NewBufferMap()
	first := []float32{1, 2, 3}
	second := []float32{9, 9, 9}

	if err := m.SetBufferSlice("close", first); err != nil {
		t.Fatal(err)
	}
	err := m.SetBufferSlice("close", second)
	if !isKind(err, frerrors.PhaseValidate, frerrors.KindDuplicateBuffer) {
		t.Fatalf("expected duplicate_buffer, got %v", err)
	}

	s, ok := m.Get("close")
	if !ok || s.Data32()[0] != 1 {
		t.Fatal("first binding was displaced")
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestBufferMap_EraseAllowsRebind(t *testing.T) {
	m := NewBufferMap()
	if err := m.SetBufferSlice("out", []float32{1}); err != nil {
		t.Fatal(err)
	}
	if !m.Erase("out") {
		t.Fatal("Erase reported not bound")
	}
	if m.Erase("out") {
		t.Fatal("double Erase reported bound")
	}
	if err := m.SetBufferSlice64("out", []float64{2}); err != nil {
		t.Fatalf("rebind after erase: %v", err)
	}
	if s, _ := m.Get("out"); s.ElemWidth() != 8 {
		t.Fatal("rebind did not take")
	}
}

func TestBufferMap_NamesInBindingOrder(t *testing.T) {
	m := NewBufferMap()
	m.SetBufferSlice("b", nil)
	m.SetBufferSlice("a", nil)
	m.SetBufferSlice("c", nil)
	m.Erase("a")

	names := m.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "c" {
		t.Fatalf("Names = %v", names)
	}
}

func TestBufferMap_StridedSpan(t *testing.T) {
	m := NewBufferMap()
	backing := make([]float32, 20)
	if err := m.SetSpan("close", factorruntime.Float32(backing).WithStride(5)); err != nil {
		t.Fatal(err)
	}
	s, _ := m.Get("close")
	if s.Stride() != 5 {
		t.Fatalf("Stride = %d, want 5", s.Stride())
	}
}
