package runtime

import (
	stderrors "errors"
	"testing"

	frerrors "github.com/quantbind/factor-runtime/errors"
)

func isKind(err error, phase frerrors.Phase, kind frerrors.Kind) bool {
	return stderrors.Is(err, &frerrors.Error{Phase: phase, Kind: kind})
}

func asError(err error, target **frerrors.Error) bool {
	return stderrors.As(err, target)
}

func TestFullRange_RejectsBadParams(t *testing.T) {
	if _, err := FullRange(0, 1); !isKind(err, frerrors.PhaseValidate, frerrors.KindInvalidArgument) {
		t.Fatalf("FullRange(0,1): %v", err)
	}
	if _, err := FullRange(8, 0); !isKind(err, frerrors.PhaseValidate, frerrors.KindInvalidArgument) {
		t.Fatalf("FullRange(8,0): %v", err)
	}
	if _, err := FullRange(-3, 2); !isKind(err, frerrors.PhaseValidate, frerrors.KindInvalidArgument) {
		t.Fatalf("FullRange(-3,2): %v", err)
	}
}

func TestWindowed_RejectsBadParams(t *testing.T) {
	cases := []struct {
		name                            string
		total, start, length, batchSize int
	}{
		{"negative start", 8, -1, 2, 2},
		{"zero length", 8, 0, 0, 2},
		{"beyond extent", 8, 6, 3, 2},
		{"zero batch", 8, 0, 8, 0},
	}
	for _, c := range cases {
		if _, err := Windowed(c.total, c.start, c.length, c.batchSize); !isKind(err, frerrors.PhaseValidate, frerrors.KindInvalidArgument) {
			t.Errorf("%s: got %v", c.name, err)
		}
	}
}

func TestWindows_CoverRangeOnce(t *testing.T) {
	plan, err := Windowed(10, 2, 7, 3)
	if err != nil {
		t.Fatal(err)
	}

	ws := plan.Windows()
	if len(ws) != 3 {
		t.Fatalf("got %d windows, want 3", len(ws))
	}

	next := 2
	for _, w := range ws {
		if w.Start != next {
			t.Fatalf("window starts at %d, want %d", w.Start, next)
		}
		if w.Length < 1 || w.Length > 3 {
			t.Fatalf("window length %d out of range", w.Length)
		}
		if w.TotalRows != 10 {
			t.Fatalf("window TotalRows = %d, want 10", w.TotalRows)
		}
		next = w.Start + w.Length
	}
	if next != plan.End() {
		t.Fatalf("windows end at %d, want %d", next, plan.End())
	}
}

func TestFullRange_SingleWindow(t *testing.T) {
	plan, err := FullRange(5, 100)
	if err != nil {
		t.Fatal(err)
	}
	ws := plan.Windows()
	if len(ws) != 1 || ws[0].Start != 0 || ws[0].Length != 5 {
		t.Fatalf("unexpected windows %+v", ws)
	}
}
