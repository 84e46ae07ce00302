// Package memstore provides the in-memory reference backend for the lease
// store and the agent directory.
package memstore

import (
	"context"
	"sync"

	"github.com/klockd/klock/internal/domain/lease"
	"github.com/klockd/klock/internal/repository"
)

// LeaseStore keeps Active leases in memory, indexed by lease id, agent id
// and canonical resource key. A single RWMutex guards all three maps so
// every primitive is atomic; readers share, writers exclude.
type LeaseStore struct {
	mu sync.RWMutex

	// leases holds the authoritative record per lease id.
	leases map[string]*lease.Lease
	// byResource and byAgent index lease ids; insertion order is kept so
	// ByResourceKey returns a stable sequence.
	byResource map[string][]string
	byAgent    map[string][]string
}

// NewLeaseStore creates an empty in-memory lease store.
func NewLeaseStore() *LeaseStore {
	return &LeaseStore{
		leases:     make(map[string]*lease.Lease),
		byResource: make(map[string][]string),
		byAgent:    make(map[string][]string),
	}
}

// Insert adds a new Active lease.
func (s *LeaseStore) Insert(_ context.Context, l *lease.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leases[l.ID]; ok {
		return repository.ErrAlreadyExists
	}

	stored := *l
	s.leases[l.ID] = &stored
	key := stored.ResourceKey()
	s.byResource[key] = append(s.byResource[key], l.ID)
	s.byAgent[l.AgentID] = append(s.byAgent[l.AgentID], l.ID)
	return nil
}

// Get returns a copy of the lease with the given id.
func (s *LeaseStore) Get(_ context.Context, id string) (*lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *l
	return &out, nil
}

// Remove takes the lease out of the active set, marks it Released and
// returns the prior record.
func (s *LeaseStore) Remove(_ context.Context, id string) (*lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.unlink(l)
	out := *l
	out.State = lease.StateReleased
	return &out, nil
}

// ByResourceKey returns the Active leases sharing the canonical key, in
// insertion order.
func (s *LeaseStore) ByResourceKey(_ context.Context, key string) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byResource[key]
	out := make([]lease.Lease, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.leases[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

// ByAgent returns the Active leases held by an agent, in insertion order.
func (s *LeaseStore) ByAgent(_ context.Context, agentID string) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAgent[agentID]
	out := make([]lease.Lease, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.leases[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

// AllActive returns every Active lease.
func (s *LeaseStore) AllActive(_ context.Context) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]lease.Lease, 0, len(s.leases))
	for _, l := range s.leases {
		out = append(out, *l)
	}
	return out, nil
}

// EvictExpired removes every lease whose TTL has elapsed at nowMs and
// returns how many were evicted. The whole sweep happens under one write
// lock so concurrent readers never observe a half-evicted set.
func (s *LeaseStore) EvictExpired(_ context.Context, nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for _, l := range s.leases {
		if l.ExpiredAt(nowMs) {
			s.unlink(l)
			l.State = lease.StateExpired
			evicted++
		}
	}
	return evicted, nil
}

// Heartbeat extends an Active lease. The expiry never moves backwards.
func (s *LeaseStore) Heartbeat(_ context.Context, id string, nowMs, extensionMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[id]
	if !ok || l.State != lease.StateActive {
		return false, nil
	}
	if next := nowMs + extensionMs; next > l.ExpiresAtMs {
		l.ExpiresAtMs = next
	}
	return true, nil
}

// CountActive returns the number of Active leases.
func (s *LeaseStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leases), nil
}

// unlink drops a lease from all three indexes. Caller holds the write lock.
func (s *LeaseStore) unlink(l *lease.Lease) {
	delete(s.leases, l.ID)
	key := l.ResourceKey()
	s.byResource[key] = removeID(s.byResource[key], l.ID)
	if len(s.byResource[key]) == 0 {
		delete(s.byResource, key)
	}
	s.byAgent[l.AgentID] = removeID(s.byAgent[l.AgentID], l.ID)
	if len(s.byAgent[l.AgentID]) == 0 {
		delete(s.byAgent, l.AgentID)
	}
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
