package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit     Phase = "init"     // executor/stream/resource acquisition
	PhaseLoad     Phase = "load"     // library loading and module lookup
	PhaseValidate Phase = "validate" // pre-call validation, no engine state touched
	PhaseExecute  Phase = "execute"  // batch graph execution
	PhaseStream   Phase = "stream"   // incremental stream updates
)

// Kind categorizes the error
type Kind string

const (
	KindAcquisitionFailed Kind = "acquisition_failed"
	KindEngineInitFailed  Kind = "engine_init_failed"
	KindLoadFailed        Kind = "load_failed"
	KindModuleNotFound    Kind = "module_not_found"
	KindUseAfterFree      Kind = "use_after_free"
	KindInvalidArgument   Kind = "invalid_argument"
	KindDuplicateBuffer   Kind = "duplicate_buffer"
	KindMissingBuffer     Kind = "missing_buffer"
	KindBufferTooSmall    Kind = "buffer_too_small"
	KindModuleMismatch    Kind = "module_mismatch"
	KindEngineFailure     Kind = "engine_failure"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string
	Buffer string
	Detail string
	Code   int32
	Needed int
	Got    int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" module ")
		b.WriteString(e.Module)
	}
	if e.Buffer != "" {
		b.WriteString(" buffer ")
		b.WriteString(e.Buffer)
	}
	if e.Kind == KindBufferTooSmall {
		fmt.Fprintf(&b, ": need %d elements, got %d", e.Needed, e.Got)
	}
	if e.Kind == KindEngineFailure {
		fmt.Fprintf(&b, ": engine status %d", e.Code)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module name
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Buffer sets the buffer name
func (b *Builder) Buffer(name string) *Builder {
	b.err.Buffer = name
	return b
}

// Code sets the engine status code
func (b *Builder) Code(code int32) *Builder {
	b.err.Code = code
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the runtime's error taxonomy

// AcquisitionFailed reports a resource acquisition that left nothing allocated.
func AcquisitionFailed(what string) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindAcquisitionFailed,
		Detail: fmt.Sprintf("acquire %s", what),
	}
}

// EngineInitFailed reports an engine-side initialization failure.
func EngineInitFailed(what string, code int32) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindEngineInitFailed,
		Code:   code,
		Detail: fmt.Sprintf("engine failed to create %s (status %d)", what, code),
	}
}

// LoadFailed reports that a factor library could not be loaded.
func LoadFailed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailed,
		Detail: fmt.Sprintf("load library %q", path),
		Cause:  cause,
	}
}

// ModuleNotFound reports that a library holds no module of the given name.
func ModuleNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindModuleNotFound,
		Module: name,
		Detail: "not present in library",
	}
}

// UseAfterFree reports an operation through an object whose owning resource
// has been released. The engine is never reached on this path.
func UseAfterFree(what string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindUseAfterFree,
		Detail: fmt.Sprintf("%s has been released", what),
	}
}

// InvalidArgument reports a locally rejected parameter.
func InvalidArgument(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidArgument,
		Detail: detail,
	}
}

// DuplicateBuffer reports a repeated buffer name in a buffer map.
func DuplicateBuffer(name string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindDuplicateBuffer,
		Buffer: name,
		Detail: "name already bound",
	}
}

// MissingBuffer reports a required buffer absent from the map.
func MissingBuffer(module, name string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindMissingBuffer,
		Module: module,
		Buffer: name,
	}
}

// BufferTooSmall reports a buffer shorter than the requested row range needs.
func BufferTooSmall(module, name string, needed, got int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindBufferTooSmall,
		Module: module,
		Buffer: name,
		Needed: needed,
		Got:    got,
	}
}

// ModuleMismatch reports a buffer map whose shapes imply a different module's
// contract than the one in use.
func ModuleMismatch(module, detail string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindModuleMismatch,
		Module: module,
		Detail: detail,
	}
}

// EngineFailure wraps a non-zero engine status code verbatim.
func EngineFailure(phase Phase, module string, code int32, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEngineFailure,
		Module: module,
		Code:   code,
		Detail: detail,
	}
}
