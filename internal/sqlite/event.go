package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/klockd/klock/internal/domain/activity"
)

// EventLog implements activity.Repository for SQLite
type EventLog struct {
	db *DB
}

// NewEventLog creates a new EventLog
func NewEventLog(db *DB) *EventLog {
	return &EventLog{db: db}
}

// Log appends an activity entry
func (l *EventLog) Log(ctx context.Context, entry *activity.Entry) error {
	query := `
		INSERT INTO events (
			agent_id, session_id, lease_id, resource_key,
			event_type, summary, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := l.db.ExecContext(ctx, query,
		entry.AgentID,
		entry.SessionID,
		entry.LeaseID,
		entry.ResourceKey,
		string(entry.EventType),
		entry.Summary,
		entry.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns matching entries, newest first
func (l *EventLog) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	var conditions []string
	var args []any

	if opts.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, opts.AgentID)
	}
	if opts.ResourceKey != "" {
		conditions = append(conditions, "resource_key = ?")
		args = append(args, opts.ResourceKey)
	}
	if opts.EventType != nil {
		conditions = append(conditions, "event_type = ?")
		args = append(args, string(*opts.EventType))
	}

	query := `
		SELECT id, agent_id, session_id, lease_id, resource_key, event_type, summary, created_at_ms
		FROM events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var entry activity.Entry
		var eventType string
		if err := rows.Scan(
			&entry.ID,
			&entry.AgentID,
			&entry.SessionID,
			&entry.LeaseID,
			&entry.ResourceKey,
			&eventType,
			&entry.Summary,
			&entry.CreatedAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		entry.EventType = activity.EventType(eventType)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}
