package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/klockd/klock/internal/domain/agent"
	"github.com/klockd/klock/internal/repository"
)

// AgentDirectory implements repository.AgentDirectory on SQLite.
type AgentDirectory struct {
	db *DB
}

// NewAgentDirectory creates a new AgentDirectory
func NewAgentDirectory(db *DB) *AgentDirectory {
	return &AgentDirectory{db: db}
}

// Register stores an agent; the priority is write-once per id
func (d *AgentDirectory) Register(ctx context.Context, a *agent.Agent) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing uint64
	err = tx.QueryRowContext(ctx, `SELECT priority FROM agents WHERE id = ?`, a.ID).Scan(&existing)
	switch {
	case err == nil:
		if existing != a.Priority {
			return repository.ErrPriorityMismatch
		}
		return nil
	case err != sql.ErrNoRows:
		return fmt.Errorf("failed to look up agent: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agents (id, priority, registered_at_ms) VALUES (?, ?, ?)`,
		a.ID, a.Priority, a.RegisteredAtMs); err != nil {
		return fmt.Errorf("failed to register agent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get retrieves an agent by ID
func (d *AgentDirectory) Get(ctx context.Context, id string) (*agent.Agent, error) {
	var a agent.Agent
	err := d.db.QueryRowContext(ctx,
		`SELECT id, priority, registered_at_ms FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &a.Priority, &a.RegisteredAtMs)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &a, nil
}

// List returns all registered agents ordered by priority, oldest first
func (d *AgentDirectory) List(ctx context.Context) ([]agent.Agent, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, priority, registered_at_ms FROM agents ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []agent.Agent
	for rows.Next() {
		var a agent.Agent
		if err := rows.Scan(&a.ID, &a.Priority, &a.RegisteredAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agents: %w", err)
	}
	return out, nil
}
