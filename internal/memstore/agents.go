package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/repository"
)

// AgentDirectory is the in-memory priority table. Registration is
// write-once per agent id.
type AgentDirectory struct {
	mu     sync.RWMutex
	agents map[string]agent.Agent
}

// NewAgentDirectory creates an empty agent directory.
func NewAgentDirectory() *AgentDirectory {
	return &AgentDirectory{agents: make(map[string]agent.Agent)}
}

// Register stores an agent. Re-registering with the same priority is a
// no-op; a different priority is rejected.
func (d *AgentDirectory) Register(_ context.Context, a *agent.Agent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.agents[a.ID]; ok {
		if existing.Priority != a.Priority {
			return repository.ErrPriorityMismatch
		}
		return nil
	}
	d.agents[a.ID] = *a
	return nil
}

// Get returns the agent with the given id.
func (d *AgentDirectory) Get(_ context.Context, id string) (*agent.Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

// List returns all registered agents ordered by priority, oldest first.
func (d *AgentDirectory) List(_ context.Context) ([]agent.Agent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]agent.Agent, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
