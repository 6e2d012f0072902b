// Package errors provides structured error types for the offstage library.
//
// Errors are categorized by Phase (where in orchestration the error
// occurred) and Kind (error category). The Error type includes rich
// context: a field path into the failing value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindUnserializable).
//		Path("scene", "root").
//		Detail("live renderer object cannot cross the boundary").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Handshake("render worker never signaled readiness", cause)
//	err := errors.DanglingRef(path, "geometries", 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
