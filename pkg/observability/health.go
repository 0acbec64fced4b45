package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthStatus represents the health state of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth holds the health result for a single dependency
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthReport is the aggregate health response
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// HealthChecker verifies connectivity to the service's dependencies. Either
// dependency may be nil, in which case it is skipped.
type HealthChecker struct {
	db      *sql.DB
	redis   *redis.Client
	timeout time.Duration
}

// NewHealthChecker creates a health checker for the given dependencies
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{
		db:      db,
		redis:   redisClient,
		timeout: 5 * time.Second,
	}
}

// Check runs all dependency probes and aggregates the result
func (hc *HealthChecker) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth),
	}

	if hc.db != nil {
		report.Components["database"] = hc.checkDatabase(ctx)
	}
	if hc.redis != nil {
		report.Components["redis"] = hc.checkRedis(ctx)
	}

	for _, c := range report.Components {
		if c.Status != HealthStatusHealthy {
			report.Status = HealthStatusUnhealthy
			break
		}
	}
	return report
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	if err := hc.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Message: err.Error(),
		}
	}
	return ComponentHealth{
		Status:  HealthStatusHealthy,
		Latency: time.Since(start).String(),
	}
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	if err := hc.redis.Ping(ctx).Err(); err != nil {
		return ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Message: err.Error(),
		}
	}
	return ComponentHealth{
		Status:  HealthStatusHealthy,
		Latency: time.Since(start).String(),
	}
}

// LivenessHandler reports whether the process is running. It never checks
// dependencies so a degraded database does not cause restarts.
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthReport{
			Status:    HealthStatusHealthy,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler reports whether the service can serve traffic
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hc.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusHealthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
