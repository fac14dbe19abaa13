package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := BufferTooSmall("alpha001", "close", 800, 512)
	msg := err.Error()

	if !strings.Contains(msg, "[validate]") {
		t.Errorf("expected phase in message, got %q", msg)
	}
	if !strings.Contains(msg, "buffer_too_small") {
		t.Errorf("expected kind in message, got %q", msg)
	}
	if !strings.Contains(msg, "need 800 elements, got 512") {
		t.Errorf("expected sizes in message, got %q", msg)
	}
	if !strings.Contains(msg, "alpha001") || !strings.Contains(msg, "close") {
		t.Errorf("expected module and buffer names, got %q", msg)
	}
}

func TestError_EngineFailureCode(t *testing.T) {
	err := EngineFailure(PhaseExecute, "alpha001", 7, "run batch 2")
	if err.Code != 7 {
		t.Fatalf("expected code 7, got %d", err.Code)
	}
	if !strings.Contains(err.Error(), "engine status 7") {
		t.Errorf("expected verbatim status in message, got %q", err.Error())
	}
}

func TestError_Is(t *testing.T) {
	err := MissingBuffer("alpha001", "volume")

	if !stderrors.Is(err, &Error{Phase: PhaseValidate, Kind: KindMissingBuffer}) {
		t.Error("expected match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseValidate, Kind: KindBufferTooSmall}) {
		t.Error("unexpected match on different kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseExecute, Kind: KindMissingBuffer}) {
		t.Error("unexpected match on different phase")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("no such file")
	err := LoadFailed("/opt/factors/alpha.flib", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
	if !strings.Contains(err.Error(), "caused by: no such file") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseStream, KindModuleMismatch).
		Module("alpha001").
		Buffer("close").
		Detail("row has %d lanes, contract wants %d", 4, 8).
		Build()

	if err.Phase != PhaseStream || err.Kind != KindModuleMismatch {
		t.Fatal("builder lost phase or kind")
	}
	if err.Detail != "row has 4 lanes, contract wants 8" {
		t.Errorf("unexpected detail %q", err.Detail)
	}
}

func TestUseAfterFree_NoEngineCode(t *testing.T) {
	err := UseAfterFree("executor")
	if err.Code != 0 {
		t.Error("use-after-free must not carry an engine status")
	}
	if err.Phase != PhaseValidate {
		t.Error("use-after-free is a validation failure")
	}
}
