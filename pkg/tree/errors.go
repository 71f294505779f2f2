package tree

import "errors"

var (
	// ErrPathResolution indicates that a path does not resolve against the
	// current tree shape. Callers treat it as "not found".
	ErrPathResolution = errors.New("path does not resolve")

	// ErrInvalidOperation indicates a command issued in a state that forbids
	// it (delete root, add on a value node, add while adding, ...). Nothing
	// has changed when it is returned.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidSelection indicates a selection request for a node that is
	// not part of the tree. The prior selection is kept.
	ErrInvalidSelection = errors.New("invalid selection")
)
