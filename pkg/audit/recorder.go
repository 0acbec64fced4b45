package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brightpath/brightpath/pkg/observability"
)

// Store persists audit events
type Store interface {
	RecordEvent(ctx context.Context, event *Event) error
	ListEventsByAccount(ctx context.Context, accountID string, limit int) ([]*Event, error)

	// PurgeEventsBefore removes events older than the cutoff. Used by the
	// maintenance jobs.
	PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Recorder writes audit events through a Store
type Recorder struct {
	store  Store
	logger *observability.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. A nil store disables auditing.
func NewRecorder(store Store, logger *observability.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record persists the event. Failures are logged and swallowed so the caller's
// flow never depends on the audit trail.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if r.store == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now()
	}

	if err := r.store.RecordEvent(ctx, event); err != nil {
		r.logger.WithError(err).
			WithField("action", string(event.Action)).
			Warn("Failed to record audit event")
	}
}

// RecordRequest fills the request context fields and records the event
func (r *Recorder) RecordRequest(req *http.Request, event *Event) {
	event.IPAddress = clientIP(req)
	event.UserAgent = req.UserAgent()
	r.Record(req.Context(), event)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
