package stores

import (
	"context"
	"sync"
	"time"

	"github.com/hogarcare/authcore/internal/audit"
)

// MemoryAuditStore is an in-process AuditStore. It backs tests and
// single-node deployments that do not need durable audit history.
type MemoryAuditStore struct {
	mu sync.RWMutex
	// newest first
	events []audit.Event
	max    int
}

// NewMemoryAuditStore caps retention at max events; max <= 0 means
// unbounded.
func NewMemoryAuditStore(max int) *MemoryAuditStore {
	return &MemoryAuditStore{max: max}
}

func (s *MemoryAuditStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append([]audit.Event{event}, s.events...)
	if s.max > 0 && len(s.events) > s.max {
		s.events = s.events[:s.max]
	}
	return nil
}

func (s *MemoryAuditStore) Query(_ context.Context, q AuditQuery) (*AuditPage, error) {
	q.normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]audit.Event, 0, len(s.events))
	for _, e := range s.events {
		if q.matches(e) {
			matched = append(matched, e)
		}
	}
	return pageEvents(matched, q), nil
}

func (s *MemoryAuditStore) Aggregate(_ context.Context, from, to time.Time) (*AuditStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return aggregateEvents(s.events, from, to), nil
}

// Len reports the number of retained events.
func (s *MemoryAuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
