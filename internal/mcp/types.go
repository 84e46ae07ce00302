package mcp

// RegisterAgentParams registers an agent's permanent priority.
type RegisterAgentParams struct {
	AgentID  string `json:"agent_id" jsonschema:"unique agent identifier"`
	Priority uint64 `json:"priority" jsonschema:"permanent priority; lower means older and wins conflicts"`
}

// RegisterAgentResult echoes the recorded registration.
type RegisterAgentResult struct {
	AgentID  string `json:"agent_id"`
	Priority uint64 `json:"priority"`
}

// AcquireLeaseParams asks for a single lease.
type AcquireLeaseParams struct {
	AgentID      string `json:"agent_id"`
	SessionID    string `json:"session_id,omitempty" jsonschema:"scopes reentrancy; same agent and session never self-conflict"`
	ResourceType string `json:"resource_type" jsonschema:"FILE, SYMBOL, API_ENDPOINT, DATABASE_TABLE or CONFIG_KEY"`
	ResourcePath string `json:"resource_path"`
	Predicate    string `json:"predicate" jsonschema:"PROVIDES, CONSUMES, MUTATES, DELETES, DEPENDS_ON or RENAMES"`
	TTLMs        int64  `json:"ttl_ms" jsonschema:"lease lifetime in milliseconds"`
}

// AcquireLeaseResult is the success-or-denial envelope.
type AcquireLeaseResult struct {
	Success    bool   `json:"success"`
	LeaseID    string `json:"lease_id,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	Resource   string `json:"resource,omitempty"`
	Predicate  string `json:"predicate,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
	WaitTimeMs int64  `json:"wait_time,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// ReleaseLeaseParams releases a held lease.
type ReleaseLeaseParams struct {
	LeaseID string `json:"lease_id"`
}

// ReleaseLeaseResult reports whether a removal occurred.
type ReleaseLeaseResult struct {
	Released bool `json:"released"`
}

// HeartbeatParams extends a held lease.
type HeartbeatParams struct {
	LeaseID     string `json:"lease_id"`
	ExtensionMs int64  `json:"extension_ms"`
}

// HeartbeatResult reports whether the lease was extended.
type HeartbeatResult struct {
	Extended bool `json:"extended"`
}

// CheckIntentsParams evaluates a manifest without committing leases.
type CheckIntentsParams struct {
	AgentID   string              `json:"agent_id"`
	SessionID string              `json:"session_id,omitempty"`
	Intents   []IntentTripleParam `json:"intents"`
}

// IntentTripleParam is one intent inside a manifest check.
type IntentTripleParam struct {
	ResourceType string `json:"resource_type"`
	ResourcePath string `json:"resource_path"`
	Predicate    string `json:"predicate"`
}

// CheckIntentsResult is the manifest verdict.
type CheckIntentsResult struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Status    string   `json:"status"`
	Conflicts []string `json:"conflicts"`
}

// ListLeasesParams has no arguments.
type ListLeasesParams struct{}

// LeaseRecord is one active lease in a listing.
type LeaseRecord struct {
	LeaseID   string `json:"lease_id"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Resource  string `json:"resource"`
	Predicate string `json:"predicate"`
	State     string `json:"state"`
	ExpiresAt int64  `json:"expires_at"`
}

// ListLeasesResult lists every active lease.
type ListLeasesResult struct {
	Leases []LeaseRecord `json:"leases"`
}

// EvictExpiredParams has no arguments.
type EvictExpiredParams struct{}

// EvictExpiredResult reports the eviction count.
type EvictExpiredResult struct {
	Evicted int `json:"evicted"`
}
