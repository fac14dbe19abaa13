// Package errors provides structured error types for the factor runtime.
//
// Every error carries a Phase (where in processing it occurred) and a Kind
// (what went wrong). Matching with errors.Is compares Phase and Kind, so
// callers can branch on categories without string inspection:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindMissingBuffer}) {
//	    // supply the buffer and retry
//	}
//
// Validation errors (PhaseValidate) are always raised before any call into
// the engine; an engine-reported status code only ever appears under
// KindEngineFailure with the code preserved verbatim.
package errors
