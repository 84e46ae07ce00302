package repository

import (
	"context"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/lease"
)

// LeaseStore maintains the set of non-terminal leases. The orchestrator
// depends only on these operations; backends (in-memory, SQLite) are
// interchangeable as long as each primitive is observed atomically by
// concurrent callers.
type LeaseStore interface {
	// Insert adds a new Active lease.
	Insert(ctx context.Context, l *lease.Lease) error
	// Get returns the lease with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*lease.Lease, error)
	// Remove takes the lease out of the active set and returns it, or ErrNotFound.
	Remove(ctx context.Context, id string) (*lease.Lease, error)
	// ByResourceKey returns the Active leases sharing the canonical key.
	// Order is stable within a single call.
	ByResourceKey(ctx context.Context, key string) ([]lease.Lease, error)
	// ByAgent returns the Active leases held by an agent.
	ByAgent(ctx context.Context, agentID string) ([]lease.Lease, error)
	// AllActive returns every Active lease. Diagnostics and bulk eviction only.
	AllActive(ctx context.Context) ([]lease.Lease, error)
	// EvictExpired transitions every lease with expires_at_ms <= nowMs to
	// Expired, removes it from the active set, and returns the count.
	EvictExpired(ctx context.Context, nowMs int64) (int, error)
	// Heartbeat extends an Active lease so that
	// expires_at_ms = max(expires_at_ms, nowMs+extensionMs). Returns false
	// when the lease is unknown or not Active.
	Heartbeat(ctx context.Context, id string, nowMs, extensionMs int64) (bool, error)
	// CountActive returns the number of Active leases.
	CountActive(ctx context.Context) (int, error)
}

// AgentDirectory is the write-once-per-agent priority table.
type AgentDirectory interface {
	// Register stores an agent. Registering the same id with the same
	// priority again is a no-op; a different priority is ErrPriorityMismatch.
	Register(ctx context.Context, a *agent.Agent) error
	// Get returns the agent, or ErrNotFound.
	Get(ctx context.Context, id string) (*agent.Agent, error)
	// List returns all registered agents.
	List(ctx context.Context) ([]agent.Agent, error)
}
