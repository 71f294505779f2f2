package document

import "errors"

// Addressing errors
var (
	// ErrNotFound indicates that a path does not address an existing element.
	ErrNotFound = errors.New("element not found")

	// ErrNotContainer indicates that a path descends into a scalar element.
	ErrNotContainer = errors.New("element is not a container")

	// ErrSegmentMismatch indicates a key segment against an array or an index
	// segment against an object.
	ErrSegmentMismatch = errors.New("path segment does not match container kind")

	// ErrIndexRange indicates an array index outside the valid range.
	ErrIndexRange = errors.New("array index out of range")
)

// Mutation errors
var (
	// ErrRootPath indicates an operation that needs a parent was given the root.
	ErrRootPath = errors.New("operation not valid on the root element")

	// ErrDuplicateKey indicates a rename onto a key that already exists.
	ErrDuplicateKey = errors.New("key already exists")

	// ErrUnsupportedValue indicates a Go value that has no document kind.
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrUnknownOp indicates an Op whose kind is not recognised.
	ErrUnknownOp = errors.New("unknown op")
)
