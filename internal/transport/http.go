// Package transport is the HTTP adapter: a thin marshaling layer over the
// kernel facade. Enum parsing and input validation happen here so malformed
// requests never reach the core.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/klockd/klock/internal/domain/activity"
	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/kernel"
	"github.com/klockd/klock/internal/domain/lease"
)

// KernelService defines the kernel operations the HTTP adapter needs.
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

// ActivityService defines the activity log operations the adapter needs.
type ActivityService interface {
	GetRecent(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Server wires HTTP handlers.
type Server struct {
	kernel KernelService
	events ActivityService
}

// NewServer creates the HTTP router with middleware. events may be nil
// when no activity log is configured.
func NewServer(svc KernelService, events ActivityService, authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(corsMiddleware)
	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	srv := &Server{kernel: svc, events: events}

	r.Get("/health", srv.handleHealth)
	r.Post("/agents", srv.handleRegisterAgent)
	r.Post("/leases", srv.handleAcquireLease)
	r.Get("/leases", srv.handleListLeases)
	r.Delete("/leases/{id}", srv.handleReleaseLease)
	r.Post("/leases/{id}/heartbeat", srv.handleHeartbeat)
	r.Post("/intents", srv.handleCheckIntents)
	r.Post("/evict", srv.handleEvict)
	r.Get("/activity", srv.handleActivity)

	return r
}

// corsMiddleware is permissive, for local development across agents.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.kernel.ActiveLeaseCount(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteData(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"active_leases": count,
	})
}

// RegisterAgentRequest is the POST /agents payload.
type RegisterAgentRequest struct {
	AgentID  string `json:"agent_id"`
	Priority uint64 `json:"priority"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AgentID == "" {
		WriteError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	registered, err := s.kernel.RegisterAgent(r.Context(), req.AgentID, req.Priority)
	if err != nil {
		if errors.Is(err, agent.ErrPriorityMismatch) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, map[string]any{
		"agent_id": registered.ID,
		"priority": registered.Priority,
	})
}

// AcquireLeaseRequest is the POST /leases payload.
type AcquireLeaseRequest struct {
	AgentID      string `json:"agent_id"`
	SessionID    string `json:"session_id"`
	ResourceType string `json:"resource_type"`
	ResourcePath string `json:"resource_path"`
	Predicate    string `json:"predicate"`
	TTLMs        int64  `json:"ttl"`
}

func (s *Server) handleAcquireLease(w http.ResponseWriter, r *http.Request) {
	var req AcquireLeaseRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := intent.NewResourceRef(req.ResourceType, req.ResourcePath)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	predicate, err := intent.ParsePredicate(req.Predicate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AgentID == "" {
		WriteError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if req.TTLMs <= 0 {
		WriteError(w, http.StatusBadRequest, "ttl must be positive")
		return
	}

	result, err := s.kernel.AcquireLease(r.Context(), kernel.AcquireRequest{
		AgentID:   req.AgentID,
		SessionID: req.SessionID,
		Resource:  ref,
		Predicate: predicate,
		TTLMs:     req.TTLMs,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !result.Success {
		message := string(result.Reason)
		if result.Detail != "" {
			message = fmt.Sprintf("%s: %s", result.Reason, result.Detail)
		}
		if result.WaitTimeMs > 0 {
			message = fmt.Sprintf("%s (retry in %dms)", message, result.WaitTimeMs)
		}
		WriteDenial(w, message)
		return
	}

	WriteData(w, http.StatusCreated, map[string]any{
		"lease_id":   result.LeaseID,
		"agent_id":   result.AgentID,
		"resource":   result.ResourceKey,
		"predicate":  result.Predicate.String(),
		"expires_at": result.ExpiresAtMs,
	})
}

func (s *Server) handleListLeases(w http.ResponseWriter, r *http.Request) {
	leases, err := s.kernel.ListLeases(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(leases))
	for _, l := range leases {
		out = append(out, map[string]any{
			"lease_id":   l.ID,
			"agent_id":   l.AgentID,
			"session_id": l.SessionID,
			"resource":   l.ResourceKey(),
			"predicate":  l.Predicate.String(),
			"state":      l.State,
			"expires_at": l.ExpiresAtMs,
		})
	}
	WriteData(w, http.StatusOK, out)
}

func (s *Server) handleReleaseLease(w http.ResponseWriter, r *http.Request) {
	released, err := s.kernel.ReleaseLease(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteData(w, http.StatusOK, map[string]any{"released": released})
}

// HeartbeatRequest is the POST /leases/{id}/heartbeat payload.
type HeartbeatRequest struct {
	ExtensionMs int64 `json:"extension_ms"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExtensionMs <= 0 {
		WriteError(w, http.StatusBadRequest, "extension_ms must be positive")
		return
	}

	extended, err := s.kernel.Heartbeat(r.Context(), chi.URLParam(r, "id"), req.ExtensionMs)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteData(w, http.StatusOK, map[string]any{"extended": extended})
}

// CheckIntentsRequest is the POST /intents payload: a manifest evaluated
// without committing any lease.
type CheckIntentsRequest struct {
	AgentID   string              `json:"agent_id"`
	SessionID string              `json:"session_id"`
	Intents   []IntentTripleParam `json:"intents"`
}

// IntentTripleParam is one intent inside a manifest check.
type IntentTripleParam struct {
	ResourceType string `json:"resource_type"`
	ResourcePath string `json:"resource_path"`
	Predicate    string `json:"predicate"`
}

func (s *Server) handleCheckIntents(w http.ResponseWriter, r *http.Request) {
	var req CheckIntentsRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AgentID == "" {
		WriteError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	manifest := intent.Manifest{AgentID: req.AgentID, SessionID: req.SessionID}
	for _, in := range req.Intents {
		ref, err := intent.NewResourceRef(in.ResourceType, in.ResourcePath)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		predicate, err := intent.ParsePredicate(in.Predicate)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		manifest.Intents = append(manifest.Intents, intent.Triple{
			Subject:   req.AgentID,
			Predicate: predicate,
			Object:    ref,
		})
	}

	verdict, err := s.kernel.Execute(r.Context(), manifest)
	if err != nil {
		if errors.Is(err, kernel.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, verdict)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	evicted, err := s.kernel.EvictExpired(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteData(w, http.StatusOK, map[string]any{"evicted": evicted})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		WriteData(w, http.StatusOK, []activity.Entry{})
		return
	}

	opts := activity.ListOptions{
		AgentID:     r.URL.Query().Get("agent_id"),
		ResourceKey: r.URL.Query().Get("resource"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	entries, err := s.events.GetRecent(r.Context(), opts)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	WriteData(w, http.StatusOK, entries)
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
