package kernel

import (
	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/schedule"
)

// Status is the manifest-level verdict.
type Status string

const (
	StatusGranted Status = "GRANTED"
	StatusWait    Status = "WAIT"
	StatusDie     Status = "DIE"
)

// rank orders verdicts from best to worst for worst-of aggregation.
func (s Status) rank() int {
	switch s {
	case StatusWait:
		return 1
	case StatusDie:
		return 2
	default:
		return 0
	}
}

// worse returns the worse of two statuses under Granted < Wait < Die.
func worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

func statusFor(d schedule.Decision) Status {
	if d == schedule.Wait {
		return StatusWait
	}
	return StatusDie
}

// Verdict is the outcome of evaluating a manifest. Conflicts carries one
// diagnostic line per conflicting intent, naming the first colliding
// holder's agent, the resource key and the holder's predicate; other
// holders colliding on the same intent are not listed. An unregistered
// requester yields a single AGENT_UNREGISTERED line instead.
type Verdict struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Status    Status   `json:"status"`
	Conflicts []string `json:"conflicts"`
}

// Reason is the denial reason carried on a failed acquire. DIE and WAIT
// derive from the scheduler; the remaining codes are reserved for adapter
// conditions and never produced by the kernel itself.
type Reason string

const (
	ReasonDie            Reason = "DIE"
	ReasonWait           Reason = "WAIT"
	ReasonConflict       Reason = "CONFLICT"
	ReasonResourceLocked Reason = "RESOURCE_LOCKED"
	ReasonSessionExpired Reason = "SESSION_EXPIRED"
)

// AcquireRequest asks for a single lease.
type AcquireRequest struct {
	AgentID   string
	SessionID string
	Resource  intent.ResourceRef
	Predicate intent.Predicate
	TTLMs     int64
}

// AcquireResult is the success-or-denial envelope for a single-lease acquire.
type AcquireResult struct {
	Success     bool             `json:"success"`
	LeaseID     string           `json:"lease_id,omitempty"`
	AgentID     string           `json:"agent_id,omitempty"`
	ResourceKey string           `json:"resource,omitempty"`
	Predicate   intent.Predicate `json:"predicate,omitempty"`
	ExpiresAtMs int64            `json:"expires_at_ms,omitempty"`
	Reason      Reason           `json:"reason,omitempty"`
	WaitTimeMs  int64            `json:"wait_time_ms,omitempty"`
	Detail      string           `json:"detail,omitempty"`
}
