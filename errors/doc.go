// Package errors provides structured error types for the vmcall bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the capability name, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
//		Capability("CG_FS_READ").
//		Detail("pointer slot %d outside guest region", 0).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseHost, addr, length)
//	err := errors.MissingExport("cgame", "vmMain")
//
// Errors never cross into the guest: the dispatcher reports them through hooks and
// logs, and the guest always receives a single word.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
