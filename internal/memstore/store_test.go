package memstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/lease"
	"github.com/klockd/klock/internal/memstore"
	"github.com/klockd/klock/internal/repository"
)

func newLease(id, agentID, path string, expiresAtMs int64) *lease.Lease {
	return &lease.Lease{
		ID:           id,
		AgentID:      agentID,
		SessionID:    "s-" + agentID,
		Resource:     intent.ResourceRef{Type: intent.ResourceFile, Path: path},
		Predicate:    intent.Mutates,
		State:        lease.StateActive,
		AcquiredAtMs: 0,
		ExpiresAtMs:  expiresAtMs,
		TTLMs:        expiresAtMs,
	}
}

func TestLeaseStore_InsertGetRemove(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewLeaseStore()

	require.NoError(t, store.Insert(ctx, newLease("l1", "a1", "/x", 1000)))
	require.ErrorIs(t, store.Insert(ctx, newLease("l1", "a1", "/x", 1000)), repository.ErrAlreadyExists)

	got, err := store.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AgentID)
	assert.Equal(t, lease.StateActive, got.State)

	removed, err := store.Remove(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, lease.StateReleased, removed.State)

	_, err = store.Get(ctx, "l1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Remove(ctx, "l1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLeaseStore_ByResourceKeyStableOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewLeaseStore()

	require.NoError(t, store.Insert(ctx, newLease("l1", "a1", "/x", 1000)))
	require.NoError(t, store.Insert(ctx, newLease("l2", "a2", "/x", 1000)))
	require.NoError(t, store.Insert(ctx, newLease("l3", "a3", "/y", 1000)))

	held, err := store.ByResourceKey(ctx, "FILE:/x")
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, "l1", held[0].ID)
	assert.Equal(t, "l2", held[1].ID)

	held, err = store.ByResourceKey(ctx, "FILE:/missing")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestLeaseStore_ByAgent(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewLeaseStore()

	require.NoError(t, store.Insert(ctx, newLease("l1", "a1", "/x", 1000)))
	require.NoError(t, store.Insert(ctx, newLease("l2", "a1", "/y", 1000)))
	require.NoError(t, store.Insert(ctx, newLease("l3", "a2", "/z", 1000)))

	held, err := store.ByAgent(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, held, 2)

	count, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLeaseStore_EvictExpired(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewLeaseStore()

	require.NoError(t, store.Insert(ctx, newLease("l1", "a1", "/x", 10)))
	require.NoError(t, store.Insert(ctx, newLease("l2", "a2", "/y", 50)))

	evicted, err := store.EvictExpired(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = store.Get(ctx, "l1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Get(ctx, "l2")
	require.NoError(t, err)

	// Expiry boundary is inclusive: expires_at_ms <= now evicts.
	evicted, err = store.EvictExpired(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
}

func TestLeaseStore_HeartbeatMonotonic(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewLeaseStore()

	require.NoError(t, store.Insert(ctx, newLease("l1", "a1", "/x", 1000)))

	ok, err := store.Heartbeat(ctx, "l1", 500, 1000)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.ExpiresAtMs)

	// A heartbeat that would shorten the lease leaves the expiry alone.
	ok, err = store.Heartbeat(ctx, "l1", 500, 100)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = store.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.ExpiresAtMs)

	ok, err = store.Heartbeat(ctx, "missing", 500, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaseStore_ConcurrentAcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewLeaseStore()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("l-%d-%d", w, i)
				agentID := fmt.Sprintf("a-%d", w)
				if err := store.Insert(ctx, newLease(id, agentID, "/shared", 1_000_000)); err != nil {
					t.Error(err)
					return
				}
				if i%2 == 0 {
					if _, err := store.Remove(ctx, id); err != nil {
						t.Error(err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	count, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker/2, count)

	held, err := store.ByResourceKey(ctx, "FILE:/shared")
	require.NoError(t, err)
	assert.Len(t, held, workers*perWorker/2)
}
