package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightpath/brightpath/pkg/observability"
)

type capturingStore struct {
	events []*Event
	err    error
}

func (s *capturingStore) RecordEvent(ctx context.Context, event *Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *capturingStore) ListEventsByAccount(ctx context.Context, accountID string, limit int) ([]*Event, error) {
	return s.events, nil
}

func (s *capturingStore) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func TestRecorder_Record(t *testing.T) {
	t.Run("persists event with timestamp", func(t *testing.T) {
		store := &capturingStore{}
		fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		recorder := NewRecorder(store, testLogger()).WithClock(func() time.Time { return fixed })

		recorder.Record(context.Background(), &Event{
			AccountID: "acct-1",
			Email:     "alice@example.com",
			Action:    EventTypeLogin,
			Success:   true,
		})

		if len(store.events) != 1 {
			t.Fatalf("Expected 1 event, got %d", len(store.events))
		}
		if !store.events[0].CreatedAt.Equal(fixed) {
			t.Errorf("Expected timestamp %v, got %v", fixed, store.events[0].CreatedAt)
		}
	})

	t.Run("keeps explicit timestamp", func(t *testing.T) {
		store := &capturingStore{}
		recorder := NewRecorder(store, testLogger())

		explicit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		recorder.Record(context.Background(), &Event{
			Action:    EventTypeLogout,
			CreatedAt: explicit,
		})

		if !store.events[0].CreatedAt.Equal(explicit) {
			t.Errorf("Expected explicit timestamp kept, got %v", store.events[0].CreatedAt)
		}
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		store := &capturingStore{err: errors.New("db down")}
		recorder := NewRecorder(store, testLogger())

		// Must not panic or surface the error.
		recorder.Record(context.Background(), &Event{Action: EventTypeLoginFailed})
	})

	t.Run("nil store is a no-op", func(t *testing.T) {
		recorder := NewRecorder(nil, testLogger())
		recorder.Record(context.Background(), &Event{Action: EventTypeLogin})
	})
}

func TestRecorder_RecordRequest(t *testing.T) {
	store := &capturingStore{}
	recorder := NewRecorder(store, testLogger())

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	req.Header.Set("User-Agent", "brightpath-test/1.0")

	recorder.RecordRequest(req, &Event{
		Email:   "alice@example.com",
		Action:  EventTypeLoginFailed,
		Success: false,
		Reason:  "invalid password",
	})

	if len(store.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(store.events))
	}
	event := store.events[0]
	if event.IPAddress != "203.0.113.9" {
		t.Errorf("Expected IP 203.0.113.9, got %s", event.IPAddress)
	}
	if event.UserAgent != "brightpath-test/1.0" {
		t.Errorf("Expected user agent recorded, got %s", event.UserAgent)
	}
}
