package runtime

import (
	"context"
	"testing"

	frerrors "github.com/quantbind/factor-runtime/errors"
	"github.com/quantbind/factor-runtime/enginetest"
)

// fixture wires a runtime over the fake engine with one registered library.
type fixture struct {
	eng  *enginetest.Engine
	rt   *Runtime
	exec *Executor
	lib  *Library
	mod  *Module
}

func newFixture(t *testing.T, def enginetest.ModuleDef) *fixture {
	t.Helper()

	eng := enginetest.New()
	eng.Register("factors.so", enginetest.LibraryDef{Modules: []enginetest.ModuleDef{def}})
	rt := New(eng)
	t.Cleanup(func() { rt.Close(context.Background()) })

	exec, err := rt.SingleThreadExecutor()
	if err != nil {
		t.Fatal(err)
	}
	lib, err := rt.LoadLibrary(context.Background(), "factors.so")
	if err != nil {
		t.Fatal(err)
	}
	mod, err := lib.Module(def.Name)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{eng: eng, rt: rt, exec: exec, lib: lib, mod: mod}
}

func mustFullRange(t *testing.T, totalRows, batchSize int) BatchPlan {
	t.Helper()
	plan, err := FullRange(totalRows, batchSize)
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func mustWindowed(t *testing.T, totalRows, start, length, batchSize int) BatchPlan {
	t.Helper()
	plan, err := Windowed(totalRows, start, length, batchSize)
	if err != nil {
		t.Fatal(err)
	}
	return plan
}

func TestRunGraph_Identity(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]float32, 8)
	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", in)
	buffers.SetBufferSlice("out", out)

	plan := mustFullRange(t, 8, 1)
	if err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestRunGraph_BatchSizeDoesNotChangeResult(t *testing.T) {
	run := func(batchSize int) []float32 {
		f := newFixture(t, enginetest.ScaleModule("double", 2))
		in := []float32{1, 2, 3, 4, 5, 6, 7}
		out := make([]float32, 7)
		buffers := NewBufferMap()
		buffers.SetBufferSlice("in", in)
		buffers.SetBufferSlice("out", out)

		plan := mustFullRange(t, 7, batchSize)
		if err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan); err != nil {
			t.Fatal(err)
		}
		return out
	}

	whole := run(7)
	chunked := run(3)
	for i := range whole {
		if whole[i] != chunked[i] {
			t.Fatalf("row %d: %v vs %v", i, whole[i], chunked[i])
		}
	}
}

func TestRunGraph_WindowedLeavesOtherRowsUntouched(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	in := []float32{1, 2, 3, 4, 5, 6}
	out := []float32{-1, -1, -1, -1, -1, -1}
	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", in)
	buffers.SetBufferSlice("out", out)

	plan := mustWindowed(t, 6, 2, 3, 2)
	if err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan); err != nil {
		t.Fatal(err)
	}

	want := []float32{-1, -1, 3, 4, 5, -1}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestRunGraph_MissingBufferNeverCallsEngine(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", []float32{1, 2})
	// "out" deliberately unbound.

	plan := mustFullRange(t, 2, 1)
	err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan)
	if !isKind(err, frerrors.PhaseValidate, frerrors.KindMissingBuffer) {
		t.Fatalf("expected missing_buffer, got %v", err)
	}
	if c := f.eng.Calls(); c.RunGraph != 0 {
		t.Fatalf("engine ran %d times on a validation failure", c.RunGraph)
	}
}

func TestRunGraph_TooSmallBufferNeverCallsEngine(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", []float32{1, 2, 3, 4})
	buffers.SetBufferSlice("out", make([]float32, 2))

	plan := mustFullRange(t, 4, 4)
	err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan)
	if !isKind(err, frerrors.PhaseValidate, frerrors.KindBufferTooSmall) {
		t.Fatalf("expected buffer_too_small, got %v", err)
	}

	var fe *frerrors.Error
	if !asError(err, &fe) || fe.Needed != 4 || fe.Got != 2 {
		t.Fatalf("wrong sizes in %v", err)
	}
	if c := f.eng.Calls(); c.RunGraph != 0 {
		t.Fatalf("engine ran %d times on a validation failure", c.RunGraph)
	}
}

func TestRunGraph_WidthMismatch(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	buffers := NewBufferMap()
	buffers.SetBufferSlice64("in", []float64{1, 2})
	buffers.SetBufferSlice("out", make([]float32, 2))

	plan := mustFullRange(t, 2, 1)
	err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan)
	if !isKind(err, frerrors.PhaseValidate, frerrors.KindModuleMismatch) {
		t.Fatalf("expected module_mismatch, got %v", err)
	}
}

func TestRunGraph_VectorLanes(t *testing.T) {
	f := newFixture(t, enginetest.LaneSumModule("sum4", 4))

	// 3 rows of 4 lanes.
	in := []float32{
		1, 1, 1, 1,
		2, 2, 2, 2,
		0, 1, 2, 3,
	}
	out := make([]float32, 3)
	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", in)
	buffers.SetBufferSlice("out", out)

	plan := mustFullRange(t, 3, 2)
	if err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan); err != nil {
		t.Fatal(err)
	}
	want := []float32{4, 8, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestRunGraph_EngineFailureCarriesContext(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", []float32{1, 2})
	buffers.SetBufferSlice("out", make([]float32, 2))

	f.eng.FailNext("RunGraph", 6)
	plan := mustFullRange(t, 2, 1)
	err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan)
	if !isKind(err, frerrors.PhaseExecute, frerrors.KindEngineFailure) {
		t.Fatalf("expected engine_failure, got %v", err)
	}

	var fe *frerrors.Error
	if !asError(err, &fe) || fe.Code != 6 || fe.Module != "id" {
		t.Fatalf("missing context in %v", err)
	}
	// First window failed; the second was never attempted.
	if c := f.eng.Calls(); c.RunGraph != 1 {
		t.Fatalf("engine ran %d windows after a failure, want 1", c.RunGraph)
	}
}

func TestRunGraph_ClosedExecutor(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", []float32{1})
	buffers.SetBufferSlice("out", make([]float32, 1))

	f.exec.Close()
	plan := mustFullRange(t, 1, 1)
	err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan)
	if !isKind(err, frerrors.PhaseValidate, frerrors.KindUseAfterFree) {
		t.Fatalf("expected use_after_free, got %v", err)
	}
	if c := f.eng.Calls(); c.RunGraph != 0 {
		t.Fatal("engine reached through a released executor")
	}
}

func TestRunGraph_ClosedLibraryInvalidatesModule(t *testing.T) {
	f := newFixture(t, enginetest.IdentityModule("id"))

	buffers := NewBufferMap()
	buffers.SetBufferSlice("in", []float32{1})
	buffers.SetBufferSlice("out", make([]float32, 1))

	f.lib.Close()
	plan := mustFullRange(t, 1, 1)
	err := RunGraph(context.Background(), f.exec, f.mod, buffers, plan)
	if !isKind(err, frerrors.PhaseValidate, frerrors.KindUseAfterFree) {
		t.Fatalf("expected use_after_free, got %v", err)
	}
}
