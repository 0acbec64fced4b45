package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.HTTPRequestDuration == nil {
			t.Error("HTTPRequestDuration is nil")
		}
		if metrics.LoginAttemptsTotal == nil {
			t.Error("LoginAttemptsTotal is nil")
		}
		if metrics.AccountLockoutsTotal == nil {
			t.Error("AccountLockoutsTotal is nil")
		}
		if metrics.TokensIssuedTotal == nil {
			t.Error("TokensIssuedTotal is nil")
		}
		if metrics.TokenFailuresTotal == nil {
			t.Error("TokenFailuresTotal is nil")
		}
		if metrics.RegistrationsTotal == nil {
			t.Error("RegistrationsTotal is nil")
		}
		if metrics.RateLimitRejectionsTotal == nil {
			t.Error("RateLimitRejectionsTotal is nil")
		}
		if metrics.CoinsAwardedTotal == nil {
			t.Error("CoinsAwardedTotal is nil")
		}
		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Add(3)
	metrics.AccountLockoutsTotal.Inc()
	metrics.TokensIssuedTotal.WithLabelValues("access").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()

	if got := testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful login, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials")); got != 3 {
		t.Errorf("Expected 3 failed logins, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AccountLockoutsTotal); got != 1 {
		t.Errorf("Expected 1 lockout, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.TokensIssuedTotal.WithLabelValues("access")); got != 1 {
		t.Errorf("Expected 1 access token, got %v", got)
	}
}

func TestMetrics_InstrumentHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := metrics.InstrumentHandler("/api/v1/auth/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/auth/login", "401"))
	if got != 1 {
		t.Errorf("Expected 1 recorded request, got %v", got)
	}
}

func TestHandler_Scrape(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "brightpath_login_attempts_total") {
		t.Error("Expected scrape output to contain brightpath_login_attempts_total")
	}
}
