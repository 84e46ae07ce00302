package lease

import "github.com/klockd/klock/internal/domain/intent"

// State is the lifecycle state of a lease.
type State string

const (
	StateActive   State = "ACTIVE"
	StateExpired  State = "EXPIRED"
	StateReleased State = "RELEASED"
	StateRevoked  State = "REVOKED"
)

// Terminal reports whether a lease in this state can never become Active again.
func (s State) Terminal() bool {
	return s == StateExpired || s == StateReleased || s == StateRevoked
}

// Lease records a granted intent with a time-bounded right of access.
type Lease struct {
	ID           string             `json:"lease_id"`
	AgentID      string             `json:"agent_id"`
	SessionID    string             `json:"session_id"`
	Resource     intent.ResourceRef `json:"resource"`
	Predicate    intent.Predicate   `json:"predicate"`
	State        State              `json:"state"`
	AcquiredAtMs int64              `json:"acquired_at_ms"`
	ExpiresAtMs  int64              `json:"expires_at_ms"`
	TTLMs        int64              `json:"ttl_ms"`
}

// ResourceKey returns the canonical key of the leased resource.
func (l *Lease) ResourceKey() string {
	return l.Resource.Key()
}

// ExpiredAt reports whether the lease's TTL has elapsed at nowMs.
func (l *Lease) ExpiredAt(nowMs int64) bool {
	return nowMs >= l.ExpiresAtMs
}
