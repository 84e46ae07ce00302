package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klockd/klock/internal/domain/activity"
	"github.com/klockd/klock/internal/sqlite"
)

func TestEventLog_LogAndList(t *testing.T) {
	ctx := context.Background()
	log := sqlite.NewEventLog(newTestDB(t))

	entries := []*activity.Entry{
		{AgentID: "A", ResourceKey: "FILE:/x", EventType: activity.TypeLeaseGranted, Summary: "first", CreatedAtMs: 1},
		{AgentID: "B", ResourceKey: "FILE:/y", EventType: activity.TypeLeaseDenied, Summary: "second", CreatedAtMs: 2},
		{AgentID: "A", ResourceKey: "FILE:/x", EventType: activity.TypeLeaseReleased, Summary: "third", CreatedAtMs: 3},
	}
	for _, e := range entries {
		require.NoError(t, log.Log(ctx, e))
		assert.NotZero(t, e.ID)
	}

	recent, err := log.List(ctx, activity.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "third", recent[0].Summary)

	mine, err := log.List(ctx, activity.ListOptions{AgentID: "A"})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	denied := activity.TypeLeaseDenied
	byType, err := log.List(ctx, activity.ListOptions{EventType: &denied})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "B", byType[0].AgentID)

	paged, err := log.List(ctx, activity.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "second", paged[0].Summary)
}
