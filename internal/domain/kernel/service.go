// Package kernel contains the coordination kernel: the orchestrator that
// turns intent manifests into verdicts and the single-lease facade that
// external adapters wrap.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klockd/klock/internal/domain/activity"
	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/lease"
	"github.com/klockd/klock/internal/domain/schedule"
	"github.com/klockd/klock/internal/repository"
)

const defaultWaitHintMs = 1000

// Service binds the conflict engine, the Wait-Die scheduler, the lease
// store and the agent directory into atomic kernel operations.
//
// Operations that change lease state hold the writer lock for their whole
// duration, so a conflict evaluation and its commit are one step and the
// active-lease snapshot seen inside a single call is consistent. Check-only
// evaluation shares the reader side. Agent registration does not take this
// lock; it relies on the agent directory's own atomicity.
type Service struct {
	leases repository.LeaseStore
	agents repository.AgentDirectory
	events activity.Repository
	logger *slog.Logger

	mu         sync.RWMutex
	now        func() time.Time
	waitHintMs int64
}

// Option adjusts service construction.
type Option func(*Service)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithWaitHint changes the advisory back-off returned on denials.
func WithWaitHint(ms int64) Option {
	return func(s *Service) { s.waitHintMs = ms }
}

// WithEventLog records kernel events into an activity log. Logging is
// best-effort and never fails an operation.
func WithEventLog(events activity.Repository) Option {
	return func(s *Service) { s.events = events }
}

// NewService creates a kernel service.
func NewService(leases repository.LeaseStore, agents repository.AgentDirectory, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		leases:     leases,
		agents:     agents,
		logger:     logger,
		now:        time.Now,
		waitHintMs: defaultWaitHintMs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) nowMs() int64 {
	return s.now().UnixMilli()
}

func (s *Service) logEvent(ctx context.Context, entry *activity.Entry) {
	if s.events == nil {
		return
	}
	entry.CreatedAtMs = s.nowMs()
	_ = s.events.Log(ctx, entry)
}

// RegisterAgent records an agent's priority. Registration is write-once:
// repeating the same (id, priority) pair is a no-op, a different priority
// is rejected.
func (s *Service) RegisterAgent(ctx context.Context, id string, priority uint64) (*agent.Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, agent.ErrEmptyID)
	}

	a := &agent.Agent{ID: id, Priority: priority, RegisteredAtMs: s.nowMs()}
	if err := s.agents.Register(ctx, a); err != nil {
		if errors.Is(err, repository.ErrPriorityMismatch) {
			return nil, agent.ErrPriorityMismatch
		}
		return nil, fmt.Errorf("registering agent: %w", err)
	}

	registered, err := s.agents.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading agent: %w", err)
	}

	s.logger.Info("agent registered", "agent_id", registered.ID, "priority", registered.Priority)
	s.logEvent(ctx, &activity.Entry{
		AgentID:   registered.ID,
		EventType: activity.TypeAgentRegistered,
		Summary:   fmt.Sprintf("registered agent %s with priority %d", registered.ID, registered.Priority),
	})
	return registered, nil
}

// Execute evaluates a manifest against the current active-lease view and
// returns the worst-case verdict. It never mutates the store; callers use
// it for check-without-commit semantics.
func (s *Service) Execute(ctx context.Context, m intent.Manifest) (Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evaluate(ctx, m, s.nowMs())
}

// evaluate runs the manifest-level decision at a fixed now. Callers hold
// at least the reader lock.
func (s *Service) evaluate(ctx context.Context, m intent.Manifest, nowMs int64) (Verdict, error) {
	if m.AgentID == "" {
		return Verdict{}, fmt.Errorf("%w: empty agent id", ErrInvalidInput)
	}

	verdict := Verdict{
		AgentID:   m.AgentID,
		SessionID: m.SessionID,
		Status:    StatusGranted,
		Conflicts: []string{},
	}

	requester, err := s.agents.Get(ctx, m.AgentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			verdict.Status = StatusDie
			verdict.Conflicts = append(verdict.Conflicts,
				fmt.Sprintf("AGENT_UNREGISTERED: agent %q has no registered priority", m.AgentID))
			return verdict, nil
		}
		return Verdict{}, fmt.Errorf("resolving requester priority: %w", err)
	}

	for _, triple := range m.Intents {
		if !triple.Predicate.Valid() {
			return Verdict{}, fmt.Errorf("%w: predicate out of range", ErrInvalidInput)
		}
		if triple.Object.Path == "" {
			return Verdict{}, fmt.Errorf("%w: %s", ErrInvalidInput, intent.ErrEmptyPath)
		}
		triple.Subject = m.AgentID

		holder, err := s.firstConflict(ctx, triple, m.SessionID, nowMs)
		if err != nil {
			return Verdict{}, err
		}
		if holder == nil {
			continue
		}

		decision := schedule.Die
		holderAgent, err := s.agents.Get(ctx, holder.AgentID)
		switch {
		case err == nil:
			decision = schedule.Decide(requester.Priority, holderAgent.Priority)
		case errors.Is(err, repository.ErrNotFound):
			// Stale lease whose agent is unknown: treat the holder as the
			// youngest possible, so the requester waits.
			decision = schedule.Wait
		default:
			return Verdict{}, fmt.Errorf("resolving holder priority: %w", err)
		}

		verdict.Conflicts = append(verdict.Conflicts, fmt.Sprintf(
			"agent %q holds %s on %s",
			holder.AgentID, holder.Triple.Predicate, triple.Object.Key()))
		verdict.Status = worse(verdict.Status, statusFor(decision))
	}

	return verdict, nil
}

// firstConflict sweeps the Active holders of the triple's resource.
// Leases whose TTL elapsed but which have not been evicted yet do not
// count as holders.
func (s *Service) firstConflict(ctx context.Context, triple intent.Triple, sessionID string, nowMs int64) (*intent.ActiveIntent, error) {
	held, err := s.leases.ByResourceKey(ctx, triple.Object.Key())
	if err != nil {
		return nil, fmt.Errorf("scanning holders: %w", err)
	}

	active := make([]intent.ActiveIntent, 0, len(held))
	for _, l := range held {
		if l.ExpiredAt(nowMs) {
			continue
		}
		active = append(active, intent.ActiveIntent{
			AgentID:   l.AgentID,
			SessionID: l.SessionID,
			Triple: intent.Triple{
				Subject:   l.AgentID,
				Predicate: l.Predicate,
				Object:    l.Resource,
			},
		})
	}

	return intent.FirstConflict(triple, sessionID, active), nil
}

// AcquireLease evaluates a one-intent manifest and, when granted, commits
// a fresh lease in the same atomic step. Denials leave the store untouched
// and carry an advisory back-off hint.
func (s *Service) AcquireLease(ctx context.Context, req AcquireRequest) (AcquireResult, error) {
	if req.AgentID == "" || req.Resource.Path == "" || !req.Predicate.Valid() {
		return AcquireResult{}, fmt.Errorf("%w: agent id, resource and predicate are required", ErrInvalidInput)
	}
	if req.TTLMs <= 0 {
		return AcquireResult{}, fmt.Errorf("%w: ttl must be positive", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.nowMs()
	manifest := intent.Manifest{
		AgentID:   req.AgentID,
		SessionID: req.SessionID,
		Intents: []intent.Triple{{
			Subject:   req.AgentID,
			Predicate: req.Predicate,
			Object:    req.Resource,
		}},
	}

	verdict, err := s.evaluate(ctx, manifest, nowMs)
	if err != nil {
		return AcquireResult{}, err
	}

	if verdict.Status != StatusGranted {
		reason := ReasonWait
		if verdict.Status == StatusDie {
			reason = ReasonDie
		}
		detail := ""
		if len(verdict.Conflicts) > 0 {
			detail = verdict.Conflicts[0]
		}
		s.logger.Debug("acquire denied",
			"agent_id", req.AgentID, "resource", req.Resource.Key(), "reason", reason)
		s.logEvent(ctx, &activity.Entry{
			AgentID:     req.AgentID,
			SessionID:   req.SessionID,
			ResourceKey: req.Resource.Key(),
			EventType:   activity.TypeLeaseDenied,
			Summary:     fmt.Sprintf("denied %s on %s: %s", req.Predicate, req.Resource.Key(), reason),
		})
		return AcquireResult{
			Success:    false,
			Reason:     reason,
			WaitTimeMs: s.waitHintMs,
			Detail:     detail,
		}, nil
	}

	granted := &lease.Lease{
		ID:           uuid.NewString(),
		AgentID:      req.AgentID,
		SessionID:    req.SessionID,
		Resource:     req.Resource,
		Predicate:    req.Predicate,
		State:        lease.StateActive,
		AcquiredAtMs: nowMs,
		ExpiresAtMs:  nowMs + req.TTLMs,
		TTLMs:        req.TTLMs,
	}
	if err := s.leases.Insert(ctx, granted); err != nil {
		return AcquireResult{}, fmt.Errorf("committing lease: %w", err)
	}

	s.logger.Info("lease granted",
		"lease_id", granted.ID, "agent_id", granted.AgentID,
		"resource", granted.ResourceKey(), "predicate", granted.Predicate.String(),
		"expires_at_ms", granted.ExpiresAtMs)
	s.logEvent(ctx, &activity.Entry{
		AgentID:     granted.AgentID,
		SessionID:   granted.SessionID,
		LeaseID:     granted.ID,
		ResourceKey: granted.ResourceKey(),
		EventType:   activity.TypeLeaseGranted,
		Summary:     fmt.Sprintf("granted %s on %s", granted.Predicate, granted.ResourceKey()),
	})

	return AcquireResult{
		Success:     true,
		LeaseID:     granted.ID,
		AgentID:     granted.AgentID,
		ResourceKey: granted.ResourceKey(),
		Predicate:   granted.Predicate,
		ExpiresAtMs: granted.ExpiresAtMs,
	}, nil
}

// ReleaseLease removes a lease. Releasing an unknown or already-terminal
// lease is not an error; it reports false.
func (s *Service) ReleaseLease(ctx context.Context, leaseID string) (bool, error) {
	if leaseID == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	released, err := s.leases.Remove(ctx, leaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("releasing lease: %w", err)
	}

	s.logger.Info("lease released",
		"lease_id", released.ID, "agent_id", released.AgentID, "resource", released.ResourceKey())
	s.logEvent(ctx, &activity.Entry{
		AgentID:     released.AgentID,
		SessionID:   released.SessionID,
		LeaseID:     released.ID,
		ResourceKey: released.ResourceKey(),
		EventType:   activity.TypeLeaseReleased,
		Summary:     fmt.Sprintf("released %s on %s", released.Predicate, released.ResourceKey()),
	})
	return true, nil
}

// Heartbeat extends an Active lease's expiry by extensionMs from now.
// The expiry never moves backwards. Reports false for unknown or
// terminal leases.
func (s *Service) Heartbeat(ctx context.Context, leaseID string, extensionMs int64) (bool, error) {
	if leaseID == "" || extensionMs <= 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.leases.Heartbeat(ctx, leaseID, s.nowMs(), extensionMs)
	if err != nil {
		return false, fmt.Errorf("extending lease: %w", err)
	}
	if ok {
		s.logEvent(ctx, &activity.Entry{
			LeaseID:   leaseID,
			EventType: activity.TypeLeaseExtended,
			Summary:   fmt.Sprintf("extended lease %s by %dms", leaseID, extensionMs),
		})
	}
	return ok, nil
}

// EvictExpired sweeps out every lease whose TTL has elapsed and returns
// the count.
func (s *Service) EvictExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted, err := s.leases.EvictExpired(ctx, s.nowMs())
	if err != nil {
		return 0, fmt.Errorf("evicting leases: %w", err)
	}
	if evicted > 0 {
		s.logger.Info("evicted expired leases", "count", evicted)
		s.logEvent(ctx, &activity.Entry{
			EventType: activity.TypeLeaseEvicted,
			Summary:   fmt.Sprintf("evicted %d expired leases", evicted),
		})
	}
	return evicted, nil
}

// ActiveLeaseCount returns the number of Active leases.
func (s *Service) ActiveLeaseCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leases.CountActive(ctx)
}

// ListLeases returns every Active lease, for diagnostics.
func (s *Service) ListLeases(ctx context.Context) ([]lease.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leases.AllActive(ctx)
}

// ListAgents returns every registered agent, oldest first.
func (s *Service) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	return s.agents.List(ctx)
}
