package resource

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/quantbind/factor-runtime/errors"
)

func TestGuard_ReleaseOnce(t *testing.T) {
	released := 0
	g := NewGuard("executor", uintptr(42), func(h uintptr) {
		if h != 42 {
			t.Errorf("release got handle %d, want 42", h)
		}
		released++
	})

	if !g.Release() {
		t.Fatal("first Release should run")
	}
	if g.Release() {
		t.Fatal("second Release should be a no-op")
	}
	if released != 1 {
		t.Fatalf("release ran %d times, want 1", released)
	}
}

func TestGuard_HandleAfterRelease(t *testing.T) {
	g := NewGuard("library", uintptr(7), func(uintptr) {})

	h, err := g.Handle()
	if err != nil {
		t.Fatalf("Handle before release: %v", err)
	}
	if h != 7 {
		t.Fatalf("expected handle 7, got %d", h)
	}

	g.Release()

	_, err = g.Handle()
	if err == nil {
		t.Fatal("expected error after release")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindUseAfterFree}) {
		t.Fatalf("expected use_after_free, got %v", err)
	}
}

func TestGuard_TokenTracksLiveness(t *testing.T) {
	g := NewGuard("library", uintptr(1), nil)
	tok := g.Token()

	if !tok.Alive() {
		t.Fatal("token should be alive before release")
	}
	if err := tok.Check(); err != nil {
		t.Fatalf("Check before release: %v", err)
	}

	g.Release()

	if tok.Alive() {
		t.Fatal("token should be dead after release")
	}
	err := tok.Check()
	if err == nil {
		t.Fatal("expected use-after-free from dead token")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindUseAfterFree}) {
		t.Fatalf("expected use_after_free, got %v", err)
	}
}

func TestGuard_TokenFlipsBeforeRelease(t *testing.T) {
	g := NewGuard("stream", uintptr(3), nil)
	tok := g.Token()
	g.release = func(uintptr) {
		if tok.Alive() {
			t.Error("token alive during release")
		}
	}
	g.Release()
}

func TestGuard_ConcurrentRelease(t *testing.T) {
	released := 0
	var mu sync.Mutex
	g := NewGuard("executor", uintptr(9), func(uintptr) {
		mu.Lock()
		released++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Release()
		}()
	}
	wg.Wait()

	if released != 1 {
		t.Fatalf("release ran %d times under contention, want 1", released)
	}
}
