package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert collides with an existing id
	ErrAlreadyExists = errors.New("already exists")

	// ErrPriorityMismatch is returned when an agent re-registers with a
	// priority different from the recorded one
	ErrPriorityMismatch = errors.New("agent already registered with a different priority")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
