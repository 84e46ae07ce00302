package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/kernel"
	"github.com/klockd/klock/internal/memstore"
)

// checkInput is the stdin payload for the one-shot manifest check. The
// optional state section primes the kernel so the verdict is evaluated
// against real holders instead of an empty store.
type checkInput struct {
	State struct {
		Agents []struct {
			AgentID  string `json:"agent_id"`
			Priority uint64 `json:"priority"`
		} `json:"agents"`
		Leases []struct {
			AgentID      string `json:"agent_id"`
			SessionID    string `json:"session_id"`
			ResourceType string `json:"resource_type"`
			ResourcePath string `json:"resource_path"`
			Predicate    string `json:"predicate"`
			TTLMs        int64  `json:"ttl_ms"`
		} `json:"leases"`
	} `json:"state"`
	Manifest struct {
		AgentID   string `json:"agent_id"`
		SessionID string `json:"session_id"`
		Intents   []struct {
			ResourceType string `json:"resource_type"`
			ResourcePath string `json:"resource_path"`
			Predicate    string `json:"predicate"`
		} `json:"intents"`
	} `json:"manifest"`
}

// runCheck evaluates one manifest from stdin and writes the verdict to
// stdout. The exit status reflects input validity, not the verdict.
func runCheck(in io.Reader, out io.Writer) error {
	var input checkInput
	dec := json.NewDecoder(in)
	if err := dec.Decode(&input); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if input.Manifest.AgentID == "" {
		return fmt.Errorf("manifest.agent_id is required")
	}

	ctx := context.Background()
	svc := kernel.NewService(
		memstore.NewLeaseStore(),
		memstore.NewAgentDirectory(),
		slog.New(slog.DiscardHandler),
	)

	for _, a := range input.State.Agents {
		if _, err := svc.RegisterAgent(ctx, a.AgentID, a.Priority); err != nil {
			return fmt.Errorf("register agent %q: %w", a.AgentID, err)
		}
	}

	for _, l := range input.State.Leases {
		ref, err := intent.NewResourceRef(l.ResourceType, l.ResourcePath)
		if err != nil {
			return fmt.Errorf("state lease: %w", err)
		}
		predicate, err := intent.ParsePredicate(l.Predicate)
		if err != nil {
			return fmt.Errorf("state lease: %w", err)
		}
		ttl := l.TTLMs
		if ttl <= 0 {
			ttl = 60_000
		}
		result, err := svc.AcquireLease(ctx, kernel.AcquireRequest{
			AgentID:   l.AgentID,
			SessionID: l.SessionID,
			Resource:  ref,
			Predicate: predicate,
			TTLMs:     ttl,
		})
		if err != nil {
			return fmt.Errorf("prime lease for %q: %w", l.AgentID, err)
		}
		if !result.Success {
			return fmt.Errorf("state leases conflict with each other: %s", result.Detail)
		}
	}

	manifest := intent.Manifest{
		AgentID:   input.Manifest.AgentID,
		SessionID: input.Manifest.SessionID,
	}
	for _, item := range input.Manifest.Intents {
		ref, err := intent.NewResourceRef(item.ResourceType, item.ResourcePath)
		if err != nil {
			return fmt.Errorf("manifest intent: %w", err)
		}
		predicate, err := intent.ParsePredicate(item.Predicate)
		if err != nil {
			return fmt.Errorf("manifest intent: %w", err)
		}
		manifest.Intents = append(manifest.Intents, intent.Triple{
			Subject:   manifest.AgentID,
			Predicate: predicate,
			Object:    ref,
		})
	}

	verdict, err := svc.Execute(ctx, manifest)
	if err != nil {
		return fmt.Errorf("evaluate manifest: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}
