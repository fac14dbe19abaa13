package main

import "testing"

func TestFormatRow_Scalar(t *testing.T) {
	col := []float32{1.5, 2.5, 3.5}
	if got := formatRow(col, 1, 1); got != "2.5" {
		t.Fatalf("formatRow row 1 = %q, want 2.5", got)
	}
	if got := formatRow(col, 3, 1); got != "" {
		t.Fatalf("out-of-range row = %q, want empty", got)
	}
}

func TestFormatRow_VectorSelectsRowLanes(t *testing.T) {
	// 3 rows of 2 lanes, lane-major.
	col := []float32{1, 2, 3, 4, 5, 6}

	if got := formatRow(col, 0, 2); got != "1;2" {
		t.Fatalf("row 0 = %q, want 1;2", got)
	}
	if got := formatRow(col, 2, 2); got != "5;6" {
		t.Fatalf("row 2 = %q, want 5;6", got)
	}
}
