package kernel

import "errors"

var (
	// ErrInvalidInput indicates a manifest or request the kernel refuses to
	// evaluate: empty agent id, invalid predicate, empty resource path, or a
	// non-positive TTL. Adapters are expected to reject these earlier.
	ErrInvalidInput = errors.New("invalid kernel input")
)
