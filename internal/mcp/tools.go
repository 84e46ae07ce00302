package mcp

import (
	"context"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/kernel"
)

// registerTools wires every kernel operation as an MCP tool.
func registerTools(server *sdkmcp.Server, svc KernelService) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "register_agent",
		Description: "Register an agent with its permanent Wait-Die priority (lower = older = wins conflicts)",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params RegisterAgentParams) (*sdkmcp.CallToolResult, RegisterAgentResult, error) {
		registered, err := svc.RegisterAgent(ctx, params.AgentID, params.Priority)
		if err != nil {
			if errors.Is(err, agent.ErrPriorityMismatch) {
				return nil, RegisterAgentResult{}, &APIError{
					Code:         "PRIORITY_MISMATCH",
					Message:      "agent already registered with a different priority",
					RecoveryHint: "Priorities are immutable; keep using the original one",
				}
			}
			return nil, RegisterAgentResult{}, MapError(err)
		}
		return nil, RegisterAgentResult{AgentID: registered.ID, Priority: registered.Priority}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "acquire_lease",
		Description: "Acquire a time-bounded lease on a shared resource; denial carries WAIT or DIE plus a back-off hint",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params AcquireLeaseParams) (*sdkmcp.CallToolResult, AcquireLeaseResult, error) {
		req, err := parseAcquire(params)
		if err != nil {
			return nil, AcquireLeaseResult{}, err
		}

		result, err := svc.AcquireLease(ctx, req)
		if err != nil {
			return nil, AcquireLeaseResult{}, MapError(err)
		}

		out := AcquireLeaseResult{Success: result.Success}
		if result.Success {
			out.LeaseID = result.LeaseID
			out.AgentID = result.AgentID
			out.Resource = result.ResourceKey
			out.Predicate = result.Predicate.String()
			out.ExpiresAt = result.ExpiresAtMs
		} else {
			out.Reason = string(result.Reason)
			out.WaitTimeMs = result.WaitTimeMs
			out.Detail = result.Detail
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "release_lease",
		Description: "Release a held lease by id; releasing an unknown lease reports released=false",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params ReleaseLeaseParams) (*sdkmcp.CallToolResult, ReleaseLeaseResult, error) {
		released, err := svc.ReleaseLease(ctx, params.LeaseID)
		if err != nil {
			return nil, ReleaseLeaseResult{}, MapError(err)
		}
		return nil, ReleaseLeaseResult{Released: released}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "heartbeat_lease",
		Description: "Extend a held lease's expiry; the expiry never moves backwards",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params HeartbeatParams) (*sdkmcp.CallToolResult, HeartbeatResult, error) {
		extended, err := svc.Heartbeat(ctx, params.LeaseID, params.ExtensionMs)
		if err != nil {
			return nil, HeartbeatResult{}, MapError(err)
		}
		return nil, HeartbeatResult{Extended: extended}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "check_intents",
		Description: "Evaluate a whole intent manifest against current holders without taking any lease",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, params CheckIntentsParams) (*sdkmcp.CallToolResult, CheckIntentsResult, error) {
		manifest := intent.Manifest{AgentID: params.AgentID, SessionID: params.SessionID}
		for _, in := range params.Intents {
			ref, err := intent.NewResourceRef(in.ResourceType, in.ResourcePath)
			if err != nil {
				return nil, CheckIntentsResult{}, invalidInput(err)
			}
			predicate, err := intent.ParsePredicate(in.Predicate)
			if err != nil {
				return nil, CheckIntentsResult{}, invalidInput(err)
			}
			manifest.Intents = append(manifest.Intents, intent.Triple{
				Subject:   params.AgentID,
				Predicate: predicate,
				Object:    ref,
			})
		}

		verdict, err := svc.Execute(ctx, manifest)
		if err != nil {
			return nil, CheckIntentsResult{}, MapError(err)
		}
		return nil, CheckIntentsResult{
			AgentID:   verdict.AgentID,
			SessionID: verdict.SessionID,
			Status:    string(verdict.Status),
			Conflicts: verdict.Conflicts,
		}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_leases",
		Description: "List every active lease, for diagnostics",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListLeasesParams) (*sdkmcp.CallToolResult, ListLeasesResult, error) {
		leases, err := svc.ListLeases(ctx)
		if err != nil {
			return nil, ListLeasesResult{}, MapError(err)
		}
		out := ListLeasesResult{Leases: make([]LeaseRecord, 0, len(leases))}
		for _, l := range leases {
			out.Leases = append(out.Leases, LeaseRecord{
				LeaseID:   l.ID,
				AgentID:   l.AgentID,
				SessionID: l.SessionID,
				Resource:  l.ResourceKey(),
				Predicate: l.Predicate.String(),
				State:     string(l.State),
				ExpiresAt: l.ExpiresAtMs,
			})
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "evict_expired",
		Description: "Sweep out every lease whose TTL has elapsed and report the count",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EvictExpiredParams) (*sdkmcp.CallToolResult, EvictExpiredResult, error) {
		evicted, err := svc.EvictExpired(ctx)
		if err != nil {
			return nil, EvictExpiredResult{}, MapError(err)
		}
		return nil, EvictExpiredResult{Evicted: evicted}, nil
	})
}

func parseAcquire(params AcquireLeaseParams) (kernel.AcquireRequest, error) {
	ref, err := intent.NewResourceRef(params.ResourceType, params.ResourcePath)
	if err != nil {
		return kernel.AcquireRequest{}, invalidInput(err)
	}
	predicate, err := intent.ParsePredicate(params.Predicate)
	if err != nil {
		return kernel.AcquireRequest{}, invalidInput(err)
	}
	if params.AgentID == "" {
		return kernel.AcquireRequest{}, invalidInput(errors.New("agent_id is required"))
	}
	if params.TTLMs <= 0 {
		return kernel.AcquireRequest{}, invalidInput(errors.New("ttl_ms must be positive"))
	}
	return kernel.AcquireRequest{
		AgentID:   params.AgentID,
		SessionID: params.SessionID,
		Resource:  ref,
		Predicate: predicate,
		TTLMs:     params.TTLMs,
	}, nil
}
