package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klockd/klock/internal/domain/intent"
)

func TestParsePredicate(t *testing.T) {
	p, err := intent.ParsePredicate("mutates")
	require.NoError(t, err)
	assert.Equal(t, intent.Mutates, p)

	p, err = intent.ParsePredicate(" DEPENDS_ON ")
	require.NoError(t, err)
	assert.Equal(t, intent.DependsOn, p)

	_, err = intent.ParsePredicate("LOCKS")
	require.ErrorIs(t, err, intent.ErrUnknownPredicate)
}

func TestPredicateStringRoundTrip(t *testing.T) {
	for i := 0; i < intent.NumPredicates; i++ {
		p := intent.Predicate(i)
		parsed, err := intent.ParsePredicate(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
}

func TestNewResourceRef(t *testing.T) {
	ref, err := intent.NewResourceRef("config_key", "db.host")
	require.NoError(t, err)
	assert.Equal(t, "CONFIG_KEY:db.host", ref.Key())

	_, err = intent.NewResourceRef("FILE", "")
	require.ErrorIs(t, err, intent.ErrEmptyPath)

	_, err = intent.NewResourceRef("FOLDER", "/x")
	require.ErrorIs(t, err, intent.ErrUnknownResourceType)
}

func TestResourceKeyRoundTrip(t *testing.T) {
	keys := []string{
		"FILE:/src/main.go",
		"SYMBOL:pkg.Func",
		"API_ENDPOINT:/v1/leases",
		"DATABASE_TABLE:users",
		"CONFIG_KEY:db.host:5432", // path may itself contain the separator
	}
	for _, key := range keys {
		ref, err := intent.ParseResourceKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, ref.Key())
	}
}

func TestParseResourceKeyRejectsMalformed(t *testing.T) {
	_, err := intent.ParseResourceKey("no-separator")
	require.ErrorIs(t, err, intent.ErrInvalidResourceKey)

	_, err = intent.ParseResourceKey("FILE:")
	require.ErrorIs(t, err, intent.ErrEmptyPath)

	_, err = intent.ParseResourceKey("BUCKET:/x")
	require.ErrorIs(t, err, intent.ErrUnknownResourceType)
}
