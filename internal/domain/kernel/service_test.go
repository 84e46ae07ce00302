package kernel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/kernel"
	"github.com/klockd/klock/internal/domain/lease"
	"github.com/klockd/klock/internal/memstore"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	ms int64
}

func (c *fakeClock) now() time.Time {
	return time.UnixMilli(c.ms)
}

func (c *fakeClock) advance(ms int64) {
	c.ms += ms
}

func newKernel(t *testing.T) (*kernel.Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{ms: 1_000_000}
	svc := kernel.NewService(
		memstore.NewLeaseStore(),
		memstore.NewAgentDirectory(),
		nil,
		kernel.WithClock(clock.now),
	)
	return svc, clock
}

func register(t *testing.T, svc *kernel.Service, id string, priority uint64) {
	t.Helper()
	_, err := svc.RegisterAgent(context.Background(), id, priority)
	require.NoError(t, err)
}

func acquire(t *testing.T, svc *kernel.Service, agentID, sessionID, path string, p intent.Predicate, ttlMs int64) kernel.AcquireResult {
	t.Helper()
	res, err := svc.AcquireLease(context.Background(), kernel.AcquireRequest{
		AgentID:   agentID,
		SessionID: sessionID,
		Resource:  intent.ResourceRef{Type: intent.ResourceFile, Path: path},
		Predicate: p,
		TTLMs:     ttlMs,
	})
	require.NoError(t, err)
	return res
}

func TestAcquire_YoungerDiesThenSucceedsAfterRelease(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)
	register(t, svc, "B", 200)

	first := acquire(t, svc, "A", "s-a", "/x", intent.Mutates, 60_000)
	require.True(t, first.Success)
	require.NotEmpty(t, first.LeaseID)
	assert.Equal(t, "FILE:/x", first.ResourceKey)

	denied := acquire(t, svc, "B", "s-b", "/x", intent.Mutates, 60_000)
	require.False(t, denied.Success)
	assert.Equal(t, kernel.ReasonDie, denied.Reason)
	assert.Equal(t, int64(1000), denied.WaitTimeMs)

	released, err := svc.ReleaseLease(context.Background(), first.LeaseID)
	require.NoError(t, err)
	require.True(t, released)

	retry := acquire(t, svc, "B", "s-b", "/x", intent.Mutates, 60_000)
	assert.True(t, retry.Success)
}

func TestAcquire_OlderRequesterWaits(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 200)
	register(t, svc, "B", 100)

	held := acquire(t, svc, "A", "s-a", "/x", intent.Mutates, 60_000)
	require.True(t, held.Success)

	denied := acquire(t, svc, "B", "s-b", "/x", intent.Mutates, 60_000)
	require.False(t, denied.Success)
	assert.Equal(t, kernel.ReasonWait, denied.Reason)
	assert.NotZero(t, denied.WaitTimeMs)

	// The denial left the store untouched.
	count, err := svc.ActiveLeaseCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAcquire_ReadersShareThenWriterDenied(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)
	register(t, svc, "B", 200)

	res, err := svc.AcquireLease(context.Background(), kernel.AcquireRequest{
		AgentID:   "A",
		SessionID: "s-a",
		Resource:  intent.ResourceRef{Type: intent.ResourceConfigKey, Path: "db.host"},
		Predicate: intent.Consumes,
		TTLMs:     60_000,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	shared, err := svc.AcquireLease(context.Background(), kernel.AcquireRequest{
		AgentID:   "B",
		SessionID: "s-b",
		Resource:  intent.ResourceRef{Type: intent.ResourceConfigKey, Path: "db.host"},
		Predicate: intent.Consumes,
		TTLMs:     60_000,
	})
	require.NoError(t, err)
	assert.True(t, shared.Success)

	writer, err := svc.AcquireLease(context.Background(), kernel.AcquireRequest{
		AgentID:   "B",
		SessionID: "s-b2",
		Resource:  intent.ResourceRef{Type: intent.ResourceConfigKey, Path: "db.host"},
		Predicate: intent.Mutates,
		TTLMs:     60_000,
	})
	require.NoError(t, err)
	assert.False(t, writer.Success)
}

func TestAcquire_ReentrantSessionGetsDistinctLease(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)

	first := acquire(t, svc, "A", "s1", "/x", intent.Mutates, 60_000)
	require.True(t, first.Success)

	second := acquire(t, svc, "A", "s1", "/x", intent.Mutates, 60_000)
	require.True(t, second.Success)
	assert.NotEqual(t, first.LeaseID, second.LeaseID)

	// A different session of the same agent still conflicts.
	other := acquire(t, svc, "A", "s2", "/x", intent.Mutates, 60_000)
	assert.False(t, other.Success)
}

func TestAcquire_ExpiredHolderIsNotAConflict(t *testing.T) {
	svc, clock := newKernel(t)
	register(t, svc, "A", 100)
	register(t, svc, "B", 200)

	held := acquire(t, svc, "A", "s-a", "/x", intent.Mutates, 10)
	require.True(t, held.Success)

	clock.advance(20)

	evicted, err := svc.EvictExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	retry := acquire(t, svc, "B", "s-b", "/x", intent.Mutates, 60_000)
	assert.True(t, retry.Success)
}

func TestAcquire_ExpiredButUnevictedHolderIsNotAConflict(t *testing.T) {
	svc, clock := newKernel(t)
	register(t, svc, "A", 100)
	register(t, svc, "B", 200)

	held := acquire(t, svc, "A", "s-a", "/x", intent.Mutates, 10)
	require.True(t, held.Success)

	// No eviction sweep has run; the stale lease still must not block B.
	clock.advance(20)

	retry := acquire(t, svc, "B", "s-b", "/x", intent.Mutates, 60_000)
	assert.True(t, retry.Success)
}

func TestExecute_WorstOutcomeWinsAndNamesAllConflicts(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)
	register(t, svc, "B", 200)
	register(t, svc, "C", 50)

	require.True(t, acquire(t, svc, "B", "s-b", "/y", intent.Mutates, 60_000).Success)
	require.True(t, acquire(t, svc, "C", "s-c", "/z", intent.Mutates, 60_000).Success)

	verdict, err := svc.Execute(context.Background(), intent.Manifest{
		AgentID:   "A",
		SessionID: "s-a",
		Intents: []intent.Triple{
			{Predicate: intent.Mutates, Object: intent.ResourceRef{Type: intent.ResourceFile, Path: "/y"}},
			{Predicate: intent.Mutates, Object: intent.ResourceRef{Type: intent.ResourceFile, Path: "/z"}},
		},
	})
	require.NoError(t, err)

	// Die against older C overrides Wait against younger B.
	assert.Equal(t, kernel.StatusDie, verdict.Status)
	require.Len(t, verdict.Conflicts, 2)
	assert.Contains(t, verdict.Conflicts[0], `"B"`)
	assert.Contains(t, verdict.Conflicts[0], "FILE:/y")
	assert.Contains(t, verdict.Conflicts[1], `"C"`)
	assert.Contains(t, verdict.Conflicts[1], "FILE:/z")

	// Execute never commits.
	count, err := svc.ActiveLeaseCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExecute_UnregisteredAgentDies(t *testing.T) {
	svc, _ := newKernel(t)

	verdict, err := svc.Execute(context.Background(), intent.Manifest{
		AgentID:   "ghost",
		SessionID: "s",
		Intents: []intent.Triple{
			{Predicate: intent.Consumes, Object: intent.ResourceRef{Type: intent.ResourceFile, Path: "/x"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.StatusDie, verdict.Status)
	require.Len(t, verdict.Conflicts, 1)
	assert.Contains(t, verdict.Conflicts[0], "AGENT_UNREGISTERED")
}

func TestExecute_DeterministicForFixedState(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)
	register(t, svc, "B", 200)
	require.True(t, acquire(t, svc, "A", "s-a", "/x", intent.Mutates, 60_000).Success)

	manifest := intent.Manifest{
		AgentID:   "B",
		SessionID: "s-b",
		Intents: []intent.Triple{
			{Predicate: intent.Consumes, Object: intent.ResourceRef{Type: intent.ResourceFile, Path: "/x"}},
		},
	}

	first, err := svc.Execute(context.Background(), manifest)
	require.NoError(t, err)
	second, err := svc.Execute(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecute_StaleHolderPriorityMeansWait(t *testing.T) {
	clock := &fakeClock{ms: 1_000_000}
	store := memstore.NewLeaseStore()
	agents := memstore.NewAgentDirectory()
	svc := kernel.NewService(store, agents, nil, kernel.WithClock(clock.now))

	register(t, svc, "B", 200)

	// A lease whose holder was never registered (conceivable with a
	// persistent backend surviving a directory wipe).
	require.NoError(t, store.Insert(context.Background(), &lease.Lease{
		ID:          "stale",
		AgentID:     "forgotten",
		SessionID:   "s-old",
		Resource:    intent.ResourceRef{Type: intent.ResourceFile, Path: "/x"},
		Predicate:   intent.Mutates,
		State:       lease.StateActive,
		ExpiresAtMs: clock.ms + 60_000,
		TTLMs:       60_000,
	}))

	verdict, err := svc.Execute(context.Background(), intent.Manifest{
		AgentID:   "B",
		SessionID: "s-b",
		Intents: []intent.Triple{
			{Predicate: intent.Mutates, Object: intent.ResourceRef{Type: intent.ResourceFile, Path: "/x"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, kernel.StatusWait, verdict.Status)
}

func TestReleaseLease_Idempotent(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)

	res := acquire(t, svc, "A", "s1", "/x", intent.Mutates, 60_000)
	require.True(t, res.Success)

	ok, err := svc.ReleaseLease(context.Background(), res.LeaseID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ReleaseLease(context.Background(), res.LeaseID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ReleaseLease(context.Background(), "never-existed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeartbeat_ExtendsOnlyActiveLeases(t *testing.T) {
	svc, clock := newKernel(t)
	register(t, svc, "A", 100)

	res := acquire(t, svc, "A", "s1", "/x", intent.Mutates, 1_000)
	require.True(t, res.Success)

	clock.advance(500)
	ok, err := svc.Heartbeat(context.Background(), res.LeaseID, 2_000)
	require.NoError(t, err)
	require.True(t, ok)

	leases, err := svc.ListLeases(context.Background())
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, clock.ms+2_000, leases[0].ExpiresAtMs)
	assert.GreaterOrEqual(t, leases[0].ExpiresAtMs, res.ExpiresAtMs)

	_, err = svc.ReleaseLease(context.Background(), res.LeaseID)
	require.NoError(t, err)

	ok, err = svc.Heartbeat(context.Background(), res.LeaseID, 2_000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterAgent_Validation(t *testing.T) {
	svc, _ := newKernel(t)

	_, err := svc.RegisterAgent(context.Background(), "", 10)
	require.ErrorIs(t, err, kernel.ErrInvalidInput)

	_, err = svc.RegisterAgent(context.Background(), "A", 10)
	require.NoError(t, err)
	_, err = svc.RegisterAgent(context.Background(), "A", 10)
	require.NoError(t, err)
	_, err = svc.RegisterAgent(context.Background(), "A", 99)
	require.ErrorIs(t, err, agent.ErrPriorityMismatch)
}

func TestAcquire_RejectsInvalidInput(t *testing.T) {
	svc, _ := newKernel(t)
	register(t, svc, "A", 100)

	_, err := svc.AcquireLease(context.Background(), kernel.AcquireRequest{
		AgentID:   "A",
		Resource:  intent.ResourceRef{Type: intent.ResourceFile, Path: "/x"},
		Predicate: intent.Mutates,
		TTLMs:     0,
	})
	require.ErrorIs(t, err, kernel.ErrInvalidInput)

	_, err = svc.AcquireLease(context.Background(), kernel.AcquireRequest{
		AgentID:   "A",
		Resource:  intent.ResourceRef{Type: intent.ResourceFile, Path: ""},
		Predicate: intent.Mutates,
		TTLMs:     1000,
	})
	require.ErrorIs(t, err, kernel.ErrInvalidInput)
}

func TestActiveLeaseCount_TracksAcquiresReleasesEvictions(t *testing.T) {
	svc, clock := newKernel(t)
	register(t, svc, "A", 100)

	ctx := context.Background()
	short := acquire(t, svc, "A", "s1", "/short", intent.Mutates, 10)
	long := acquire(t, svc, "A", "s1", "/long", intent.Mutates, 60_000)
	require.True(t, short.Success)
	require.True(t, long.Success)

	count, err := svc.ActiveLeaseCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	clock.advance(20)
	evicted, err := svc.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	released, err := svc.ReleaseLease(ctx, long.LeaseID)
	require.NoError(t, err)
	require.True(t, released)

	count, err = svc.ActiveLeaseCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
