// Package errs collects the sentinel error kinds that propagate to the
// caller, per the error taxonomy in spec.md §7. OrderTooHigh, OutOfRange and
// InversionFailed are *not* here: those are locally recovered and only ever
// reach the logging package, never the caller.
package errs

import "errors"

var (
	// ErrUnknownTransform is returned when a transform name is not present
	// in the registry.
	ErrUnknownTransform = errors.New("qgrid: unknown transform")

	// ErrAxisMismatch is returned by SparseTensor3D += (Tensor.AddTensor)
	// and InterpGrid.Accumulate when the operands' axes are not identical.
	ErrAxisMismatch = errors.New("qgrid: axis mismatch")

	// ErrIOFailure is returned by persistence read/write on any underlying
	// storage error. It never leaves partial state behind.
	ErrIOFailure = errors.New("qgrid: persistence I/O failure")

	// ErrEmpty is returned by Grid.Convolute when every InterpGrid that
	// would contribute has zero trimmed size; the caller still receives
	// zeroed results, this is informational.
	ErrEmpty = errors.New("qgrid: convolution of empty grid")
)
