package agent

// Agent is an autonomous caller known to the kernel. Priority orders agents
// by age: a lower value was registered earlier and takes precedence in
// Wait-Die arbitration. Priority is assigned once and never changes.
type Agent struct {
	ID             string `json:"agent_id"`
	Priority       uint64 `json:"priority"`
	RegisteredAtMs int64  `json:"registered_at_ms"`
}
