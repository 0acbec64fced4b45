package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestNewHealthChecker(t *testing.T) {
	t.Run("with nil dependencies", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil)
		if checker == nil {
			t.Fatal("Expected non-nil checker")
		}
		if checker.db != nil {
			t.Error("Expected nil db")
		}
		if checker.redis != nil {
			t.Error("Expected nil redis")
		}
	})

	t.Run("with database", func(t *testing.T) {
		db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()

		checker := NewHealthChecker(db, nil)
		if checker.db == nil {
			t.Error("Expected non-nil db")
		}
	})
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("no dependencies is healthy", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil)
		report := checker.Check(context.Background())

		if report.Status != HealthStatusHealthy {
			t.Errorf("Expected healthy status, got %s", report.Status)
		}
		if len(report.Components) != 0 {
			t.Errorf("Expected no components, got %d", len(report.Components))
		}
	})

	t.Run("healthy database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()
		mock.ExpectPing()

		checker := NewHealthChecker(db, nil)
		report := checker.Check(context.Background())

		if report.Status != HealthStatusHealthy {
			t.Errorf("Expected healthy status, got %s", report.Status)
		}
		if report.Components["database"].Status != HealthStatusHealthy {
			t.Errorf("Expected healthy database, got %s", report.Components["database"].Status)
		}
	})

	t.Run("healthy redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		defer mr.Close()

		redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer redisClient.Close()

		checker := NewHealthChecker(nil, redisClient)
		report := checker.Check(context.Background())

		if report.Status != HealthStatusHealthy {
			t.Errorf("Expected healthy status, got %s", report.Status)
		}
		if report.Components["redis"].Status != HealthStatusHealthy {
			t.Errorf("Expected healthy redis, got %s", report.Components["redis"].Status)
		}
	})

	t.Run("unreachable redis marks report unhealthy", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		addr := mr.Addr()
		mr.Close()

		redisClient := redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()

		checker := NewHealthChecker(nil, redisClient)
		report := checker.Check(context.Background())

		if report.Status != HealthStatusUnhealthy {
			t.Errorf("Expected unhealthy status, got %s", report.Status)
		}
	})
}

func TestHealthChecker_LivenessHandler(t *testing.T) {
	checker := NewHealthChecker(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	checker.LivenessHandler()(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Liveness check returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var report HealthReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if report.Status != HealthStatusHealthy {
		t.Errorf("Expected healthy status, got %s", report.Status)
	}
}

func TestHealthChecker_ReadinessHandler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		defer mr.Close()

		redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer redisClient.Close()

		checker := NewHealthChecker(nil, redisClient)
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := httptest.NewRecorder()

		checker.ReadinessHandler()(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		addr := mr.Addr()
		mr.Close()

		redisClient := redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()

		checker := NewHealthChecker(nil, redisClient)
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := httptest.NewRecorder()

		checker.ReadinessHandler()(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", rr.Code)
		}

		var report HealthReport
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if report.Status != HealthStatusUnhealthy {
			t.Errorf("Expected unhealthy status, got %s", report.Status)
		}
	})
}
