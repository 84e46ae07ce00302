package activity

// EventType represents the type of kernel event
type EventType string

const (
	TypeAgentRegistered EventType = "agent_registered"
	TypeLeaseGranted    EventType = "lease_granted"
	TypeLeaseDenied     EventType = "lease_denied"
	TypeLeaseReleased   EventType = "lease_released"
	TypeLeaseExtended   EventType = "lease_extended"
	TypeLeaseEvicted    EventType = "lease_evicted"
)

// Entry represents an event in the kernel activity log
type Entry struct {
	ID          int64     `json:"id"`
	AgentID     string    `json:"agent_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	LeaseID     string    `json:"lease_id,omitempty"`
	ResourceKey string    `json:"resource,omitempty"`
	EventType   EventType `json:"type"`
	Summary     string    `json:"summary"`
	CreatedAtMs int64     `json:"created_at_ms"`
}
