package intent

import "errors"

var (
	// ErrUnknownPredicate indicates a name outside the predicate enumeration.
	ErrUnknownPredicate = errors.New("unknown predicate")
	// ErrUnknownResourceType indicates a name outside the resource type enumeration.
	ErrUnknownResourceType = errors.New("unknown resource type")
	// ErrEmptyPath indicates a resource reference with no path.
	ErrEmptyPath = errors.New("resource path must not be empty")
	// ErrInvalidResourceKey indicates a canonical key that cannot be decoded.
	ErrInvalidResourceKey = errors.New("invalid resource key")
)
