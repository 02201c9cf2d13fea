package local

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/infraweave-io/control-plane/internal/facade"
)

// Logs is an in-memory, append-only per-job line store. Tail's cursor is the index of
// the next unread line, encoded as a decimal string so it stays an opaque token to
// callers the way spec §4.1 requires.
type Logs struct {
	mu      sync.Mutex
	entries map[facade.JobHandle][]facade.LogEntry
}

func NewLogs() *Logs {
	return &Logs{entries: make(map[facade.JobHandle][]facade.LogEntry)}
}

func (l *Logs) Append(_ context.Context, handle facade.JobHandle, lines []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for _, line := range lines {
		l.entries[handle] = append(l.entries[handle], facade.LogEntry{Timestamp: now, Line: line})
	}
	return nil
}

func (l *Logs) Tail(_ context.Context, handle facade.JobHandle, cursor string, limit int) ([]facade.LogEntry, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if cursor != "" {
		if v, err := strconv.Atoi(cursor); err == nil && v > 0 {
			start = v
		}
	}

	all := l.entries[handle]
	if start >= len(all) {
		return nil, strconv.Itoa(len(all)), nil
	}
	end := len(all)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := append([]facade.LogEntry(nil), all[start:end]...)
	return out, strconv.Itoa(end), nil
}
