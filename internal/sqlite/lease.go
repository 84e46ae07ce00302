package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/klockd/klock/internal/domain/intent"
	"github.com/klockd/klock/internal/domain/lease"
	"github.com/klockd/klock/internal/repository"
)

// LeaseStore implements repository.LeaseStore on SQLite. Terminal leases
// keep their row with the state flipped, so the active set is the subset
// with state = 'ACTIVE'.
type LeaseStore struct {
	db *DB
}

// NewLeaseStore creates a new LeaseStore
func NewLeaseStore(db *DB) *LeaseStore {
	return &LeaseStore{db: db}
}

const leaseColumns = `
	id, agent_id, session_id, resource_type, resource_path,
	predicate, state, acquired_at_ms, expires_at_ms, ttl_ms
`

// Insert adds a new Active lease
func (s *LeaseStore) Insert(ctx context.Context, l *lease.Lease) error {
	query := `
		INSERT INTO leases (
			id, agent_id, session_id, resource_type, resource_path,
			resource_key, predicate, state, acquired_at_ms, expires_at_ms, ttl_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID,
		l.AgentID,
		l.SessionID,
		string(l.Resource.Type),
		l.Resource.Path,
		l.ResourceKey(),
		l.Predicate.String(),
		string(lease.StateActive),
		l.AcquiredAtMs,
		l.ExpiresAtMs,
		l.TTLMs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert lease: %w", err)
	}

	return nil
}

// Get retrieves an Active lease by ID
func (s *LeaseStore) Get(ctx context.Context, id string) (*lease.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = ? AND state = 'ACTIVE'`

	l, err := scanLease(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	return l, nil
}

// Remove releases an Active lease and returns the prior record
func (s *LeaseStore) Remove(ctx context.Context, id string) (*lease.Lease, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = ? AND state = 'ACTIVE'`
	l, err := scanLease(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lease: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE leases SET state = ? WHERE id = ?`, string(lease.StateReleased), id); err != nil {
		return nil, fmt.Errorf("failed to release lease: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	l.State = lease.StateReleased
	return l, nil
}

// ByResourceKey returns Active leases sharing the canonical key, oldest first
func (s *LeaseStore) ByResourceKey(ctx context.Context, key string) ([]lease.Lease, error) {
	query := `
		SELECT ` + leaseColumns + `
		FROM leases
		WHERE resource_key = ? AND state = 'ACTIVE'
		ORDER BY acquired_at_ms, id
	`
	return s.queryLeases(ctx, query, key)
}

// ByAgent returns Active leases held by an agent, oldest first
func (s *LeaseStore) ByAgent(ctx context.Context, agentID string) ([]lease.Lease, error) {
	query := `
		SELECT ` + leaseColumns + `
		FROM leases
		WHERE agent_id = ? AND state = 'ACTIVE'
		ORDER BY acquired_at_ms, id
	`
	return s.queryLeases(ctx, query, agentID)
}

// AllActive returns every Active lease
func (s *LeaseStore) AllActive(ctx context.Context) ([]lease.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE state = 'ACTIVE' ORDER BY acquired_at_ms, id`
	return s.queryLeases(ctx, query)
}

// EvictExpired flips every overdue Active lease to Expired and returns the count
func (s *LeaseStore) EvictExpired(ctx context.Context, nowMs int64) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE leases SET state = ? WHERE state = 'ACTIVE' AND expires_at_ms <= ?`,
		string(lease.StateExpired), nowMs)
	if err != nil {
		return 0, fmt.Errorf("failed to evict leases: %w", err)
	}
	evicted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count evictions: %w", err)
	}
	return int(evicted), nil
}

// Heartbeat extends an Active lease without ever shortening it
func (s *LeaseStore) Heartbeat(ctx context.Context, id string, nowMs, extensionMs int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE leases SET expires_at_ms = MAX(expires_at_ms, ?) WHERE id = ? AND state = 'ACTIVE'`,
		nowMs+extensionMs, id)
	if err != nil {
		return false, fmt.Errorf("failed to extend lease: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check extension: %w", err)
	}
	return affected > 0, nil
}

// CountActive returns the number of Active leases
func (s *LeaseStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leases WHERE state = 'ACTIVE'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leases: %w", err)
	}
	return count, nil
}

func (s *LeaseStore) queryLeases(ctx context.Context, query string, args ...any) ([]lease.Lease, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leases: %w", err)
	}
	defer rows.Close()

	var out []lease.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLease(row rowScanner) (*lease.Lease, error) {
	var l lease.Lease
	var resourceType, predicate, state string
	if err := row.Scan(
		&l.ID,
		&l.AgentID,
		&l.SessionID,
		&resourceType,
		&l.Resource.Path,
		&predicate,
		&state,
		&l.AcquiredAtMs,
		&l.ExpiresAtMs,
		&l.TTLMs,
	); err != nil {
		return nil, err
	}

	l.Resource.Type = intent.ResourceType(resourceType)
	l.State = lease.State(state)
	p, err := intent.ParsePredicate(predicate)
	if err != nil {
		return nil, fmt.Errorf("corrupt predicate column: %w", err)
	}
	l.Predicate = p
	return &l, nil
}
