package storage

import (
	"context"
	"time"

	"github.com/brightpath/brightpath/pkg/audit"
)

// RecordEvent appends an audit event
func (s *MemoryStore) RecordEvent(ctx context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *event
	stored.ID = s.nextEventID
	s.nextEventID++
	s.auditEvents = append(s.auditEvents, &stored)
	event.ID = stored.ID
	return nil
}

// ListEventsByAccount returns the account's events, newest first
func (s *MemoryStore) ListEventsByAccount(ctx context.Context, accountID string, limit int) ([]*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Event
	for i := len(s.auditEvents) - 1; i >= 0; i-- {
		if s.auditEvents[i].AccountID == accountID {
			copied := *s.auditEvents[i]
			out = append(out, &copied)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// PurgeEventsBefore removes events older than the cutoff
func (s *MemoryStore) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.auditEvents[:0]
	purged := 0
	for _, event := range s.auditEvents {
		if event.CreatedAt.Before(cutoff) {
			purged++
		} else {
			kept = append(kept, event)
		}
	}
	s.auditEvents = kept
	return purged, nil
}
