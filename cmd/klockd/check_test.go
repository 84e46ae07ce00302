package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCheck_GrantedOnEmptyState(t *testing.T) {
	input := `{
		"state": {"agents": [{"agent_id": "A", "priority": 100}]},
		"manifest": {
			"agent_id": "A",
			"session_id": "s1",
			"intents": [{"resource_type": "FILE", "resource_path": "/x", "predicate": "MUTATES"}]
		}
	}`

	var out bytes.Buffer
	require.NoError(t, runCheck(strings.NewReader(input), &out))

	var verdict map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &verdict))
	assert.Equal(t, "GRANTED", verdict["status"])
}

func TestRunCheck_ConflictAgainstPrimedState(t *testing.T) {
	input := `{
		"state": {
			"agents": [{"agent_id": "A", "priority": 100}, {"agent_id": "B", "priority": 200}],
			"leases": [{"agent_id": "A", "session_id": "s-a", "resource_type": "FILE", "resource_path": "/x", "predicate": "MUTATES"}]
		},
		"manifest": {
			"agent_id": "B",
			"session_id": "s-b",
			"intents": [{"resource_type": "FILE", "resource_path": "/x", "predicate": "MUTATES"}]
		}
	}`

	var out bytes.Buffer
	require.NoError(t, runCheck(strings.NewReader(input), &out))

	var verdict map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &verdict))
	assert.Equal(t, "DIE", verdict["status"])
}

func TestRunCheck_RejectsInvalidInput(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, runCheck(strings.NewReader("not json"), &out))
	require.Error(t, runCheck(strings.NewReader(`{"manifest": {"intents": []}}`), &out))
	require.Error(t, runCheck(strings.NewReader(`{
		"manifest": {"agent_id": "A", "intents": [
			{"resource_type": "FILE", "resource_path": "/x", "predicate": "LOCKS"}
		]}
	}`), &out))
}
