package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/domain/lease"
)

// LeaseStore is a mock for repository.LeaseStore.
type LeaseStore struct {
	mock.Mock
}

func (m *LeaseStore) Insert(ctx context.Context, l *lease.Lease) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *LeaseStore) Get(ctx context.Context, id string) (*lease.Lease, error) {
	args := m.Called(ctx, id)
	if l, ok := args.Get(0).(*lease.Lease); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LeaseStore) Remove(ctx context.Context, id string) (*lease.Lease, error) {
	args := m.Called(ctx, id)
	if l, ok := args.Get(0).(*lease.Lease); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LeaseStore) ByResourceKey(ctx context.Context, key string) ([]lease.Lease, error) {
	args := m.Called(ctx, key)
	if list, ok := args.Get(0).([]lease.Lease); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LeaseStore) ByAgent(ctx context.Context, agentID string) ([]lease.Lease, error) {
	args := m.Called(ctx, agentID)
	if list, ok := args.Get(0).([]lease.Lease); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LeaseStore) AllActive(ctx context.Context) ([]lease.Lease, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]lease.Lease); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LeaseStore) EvictExpired(ctx context.Context, nowMs int64) (int, error) {
	args := m.Called(ctx, nowMs)
	return args.Int(0), args.Error(1)
}

func (m *LeaseStore) Heartbeat(ctx context.Context, id string, nowMs, extensionMs int64) (bool, error) {
	args := m.Called(ctx, id, nowMs, extensionMs)
	return args.Bool(0), args.Error(1)
}

func (m *LeaseStore) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// AgentDirectory is a mock for repository.AgentDirectory.
type AgentDirectory struct {
	mock.Mock
}

func (m *AgentDirectory) Register(ctx context.Context, a *agent.Agent) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *AgentDirectory) Get(ctx context.Context, id string) (*agent.Agent, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*agent.Agent); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AgentDirectory) List(ctx context.Context) ([]agent.Agent, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]agent.Agent); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
