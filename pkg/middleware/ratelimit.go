package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/brightpath/brightpath/pkg/httputil"
	"github.com/brightpath/brightpath/pkg/observability"
)

// LimitStore counts requests per key within a fixed window. Increment returns
// the count after this request and the time until the window resets.
type LimitStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// KeyFunc derives the rate limit key from a request
type KeyFunc func(*http.Request) string

// KeyByIP keys rate limits on the client IP address
func KeyByIP(r *http.Request) string {
	return "ip:" + httputil.ClientIP(r)
}

// RateLimiter applies a fixed-window limit to requests sharing a key
type RateLimiter struct {
	store   LimitStore
	limit   int
	window  time.Duration
	scope   string
	keyFunc KeyFunc
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRateLimiter creates a rate limiter. The scope labels metrics and
// namespaces keys so limiters sharing a store do not collide. A nil metrics is
// allowed.
func NewRateLimiter(store LimitStore, limit int, window time.Duration, scope string, logger *observability.Logger, metrics *observability.Metrics) *RateLimiter {
	return &RateLimiter{
		store:   store,
		limit:   limit,
		window:  window,
		scope:   scope,
		keyFunc: KeyByIP,
		logger:  logger,
		metrics: metrics,
	}
}

// WithKeyFunc overrides the key derivation
func (rl *RateLimiter) WithKeyFunc(fn KeyFunc) *RateLimiter {
	rl.keyFunc = fn
	return rl
}

// Handler wraps an HTTP handler with rate limiting. Store errors fail open so
// a degraded backend never blocks logins.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.scope + ":" + rl.keyFunc(r)

		count, ttl, err := rl.store.Increment(r.Context(), key, rl.window)
		if err != nil {
			rl.logger.WithError(err).WithField("scope", rl.scope).Warn("Rate limit store error, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))

		if count > rl.limit {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", ttl.Seconds()))
			if rl.metrics != nil {
				rl.metrics.RateLimitRejectionsTotal.WithLabelValues(rl.scope).Inc()
			}
			httputil.WriteTooManyRequests(w, "rate limit exceeded, try again later")
			return
		}

		remaining := rl.limit - count
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		next.ServeHTTP(w, r)
	})
}

type windowEntry struct {
	count int
	start time.Time
}

// MemoryLimitStore is an in-process LimitStore. The expiring LRU bounds memory
// under key churn; entries idle past the window are dropped automatically.
type MemoryLimitStore struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *windowEntry]
	now     func() time.Time
}

// NewMemoryLimitStore creates a bounded in-memory store. maxKeys caps the
// number of tracked keys and window sets the entry TTL.
func NewMemoryLimitStore(maxKeys int, window time.Duration) *MemoryLimitStore {
	return &MemoryLimitStore{
		entries: expirable.NewLRU[string, *windowEntry](maxKeys, nil, window),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests
func (s *MemoryLimitStore) WithClock(now func() time.Time) *MemoryLimitStore {
	s.now = now
	return s
}

// Increment counts a request against the key's current window
func (s *MemoryLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries.Get(key)
	if !ok || now.Sub(entry.start) >= window {
		entry = &windowEntry{start: now}
		s.entries.Add(key, entry)
	}
	entry.count++

	ttl := window - now.Sub(entry.start)
	return entry.count, ttl, nil
}
