// Package mcp exposes the kernel facade as MCP tools so coding agents can
// coordinate directly over stdio or streamable HTTP.
package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/kernel"
	"github.com/klockd/klock/internal/domain/lease"
)

// KernelService defines the kernel operations needed by MCP.
type KernelService interface {
	RegisterAgent(ctx context.Context, id string, priority uint64) (*agent.Agent, error)
	Execute(ctx context.Context, m intent.Manifest) (kernel.Verdict, error)
	AcquireLease(ctx context.Context, req kernel.AcquireRequest) (kernel.AcquireResult, error)
	ReleaseLease(ctx context.Context, leaseID string) (bool, error)
	Heartbeat(ctx context.Context, leaseID string, extensionMs int64) (bool, error)
	EvictExpired(ctx context.Context) (int, error)
	ActiveLeaseCount(ctx context.Context) (int, error)
	ListLeases(ctx context.Context) ([]lease.Lease, error)
}

// Config contains server configuration.
type Config struct {
	Kernel        KernelService
	APIKey        string // empty disables auth
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "klock",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	// Stdio mode is local-only; auth applies on HTTP when a key is set.
	if cfg.TransportMode != "stdio" && cfg.APIKey != "" {
		server.AddReceivingMiddleware(authMiddleware(cfg.APIKey))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Kernel)

	return server
}
