package agent

import "errors"

var (
	// ErrAgentNotFound indicates the agent has never been registered.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrEmptyID indicates a registration with an empty agent id.
	ErrEmptyID = errors.New("agent id must not be empty")
	// ErrPriorityMismatch indicates a re-registration with a different priority.
	ErrPriorityMismatch = errors.New("agent already registered with a different priority")
)
