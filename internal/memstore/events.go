package memstore

import (
	"context"
	"sync"

	"github.com/klockd/klock/internal/domain/activity"
)

// maxEventEntries bounds the in-memory activity log; older entries fall off.
const maxEventEntries = 4096

// EventLog is the in-memory activity.Repository: a bounded append-only log.
type EventLog struct {
	mu      sync.RWMutex
	nextID  int64
	entries []activity.Entry
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{nextID: 1}
}

// Log appends an entry, assigning the next id.
func (l *EventLog) Log(_ context.Context, entry *activity.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.ID = l.nextID
	l.nextID++
	l.entries = append(l.entries, *entry)
	if len(l.entries) > maxEventEntries {
		l.entries = l.entries[len(l.entries)-maxEventEntries:]
	}
	return nil
}

// List returns matching entries, newest first.
func (l *EventLog) List(_ context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	out := make([]activity.Entry, 0, limit)
	skipped := 0
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := l.entries[i]
		if opts.AgentID != "" && entry.AgentID != opts.AgentID {
			continue
		}
		if opts.ResourceKey != "" && entry.ResourceKey != opts.ResourceKey {
			continue
		}
		if opts.EventType != nil && entry.EventType != *opts.EventType {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
