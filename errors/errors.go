package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in orchestration the error occurred
type Phase string

const (
	PhaseSetup     Phase = "setup"     // surface resolution, subsystem wiring
	PhaseSpawn     Phase = "spawn"     // worker context creation
	PhaseHandshake Phase = "handshake" // module init / readiness
	PhaseEncode    Phase = "encode"    // values crossing the boundary outward
	PhaseDecode    Phase = "decode"    // values crossing the boundary inward
	PhaseDispatch  Phase = "dispatch"  // method/event routing
	PhaseLoad      Phase = "load"      // asset loading
	PhaseRuntime   Phase = "runtime"   // steady-state operations
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidData       Kind = "invalid_data"
	KindUnserializable    Kind = "unserializable"
	KindClosed            Kind = "closed"
	KindAlreadyTransfered Kind = "already_transferred"
	KindInvalidTransition Kind = "invalid_transition"
	KindCyclicGraph       Kind = "cyclic_graph"
	KindDanglingRef       Kind = "dangling_ref"
	KindFatal             Kind = "fatal"
	KindCanceled          Kind = "canceled"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
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

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
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

// Convenience constructors for common error patterns

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unserializable is the fail-fast error for live references that cannot
// cross the context boundary as plain data.
func Unserializable(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnserializable,
		Detail: what,
		Cause:  cause,
	}
}

// Closed creates an error for operations on a closed port, stream, or pool
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// AlreadyTransferred creates an ownership violation error
func AlreadyTransferred(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindAlreadyTransfered,
		Detail: fmt.Sprintf("ownership of %s was already transferred", what),
	}
}

// InvalidTransition creates a lifecycle transition error
func InvalidTransition(from, to string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInvalidTransition,
		Detail: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// CyclicGraph creates an encode error for a graph that references itself
func CyclicGraph(path []string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindCyclicGraph,
		Path:   path,
		Detail: "node graph contains a cycle",
	}
}

// DanglingRef creates a decode error for an index missing from a side table
func DanglingRef(path []string, table string, index, length int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindDanglingRef,
		Path:   path,
		Detail: fmt.Sprintf("%s index %d out of range (table length %d)", table, index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Spawn creates a fatal spawn error
func Spawn(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSpawn,
		Kind:   KindFatal,
		Detail: detail,
		Cause:  cause,
	}
}

// Handshake creates a fatal handshake error; the worker never became usable
func Handshake(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseHandshake,
		Kind:   KindFatal,
		Detail: detail,
		Cause:  cause,
	}
}

// Canceled wraps a context cancellation observed mid-operation
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCanceled,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
