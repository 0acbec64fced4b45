package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/storage"
)

func testIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func seedAccount(t *testing.T, store storage.AccountStore, mutate func(*auth.Account)) *auth.Account {
	t.Helper()
	account := &auth.Account{
		ID:          "acct-1",
		Email:       "alice@example.com",
		Role:        auth.RoleStudent,
		Permissions: auth.DerivePermissions(auth.RoleStudent),
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if mutate != nil {
		mutate(account)
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	return account
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return body.Message
}

func TestRequireAuth(t *testing.T) {
	issuer := testIssuer()
	store := storage.NewMemoryStore()
	account := seedAccount(t, store, nil)
	mw := NewAuthMiddleware(issuer, store, testLogger())

	token, err := issuer.IssueAccess(account)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	t.Run("valid token passes", func(t *testing.T) {
		var captured *auth.AuthContext
		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetAuthContext(r)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if captured == nil {
			t.Fatal("Expected auth context in request")
		}
		if captured.AccountID != account.ID {
			t.Errorf("Expected account id %s, got %s", account.ID, captured.AccountID)
		}
		if captured.Role != auth.RoleStudent {
			t.Errorf("Expected student role, got %s", captured.Role)
		}
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		rec := httptest.NewRecorder()
		mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
	})

	t.Run("expired token rejected", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		expiredIssuer := auth.NewTokenIssuer(auth.TokenConfig{
			AccessSecret:  []byte("access-secret"),
			RefreshSecret: []byte("refresh-secret"),
			AccessTTL:     time.Minute,
		}).WithClock(func() time.Time { return past })

		expired, err := expiredIssuer.IssueAccess(account)
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		rec := httptest.NewRecorder()
		mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
	})

	t.Run("unknown subject rejected with same message as missing header", func(t *testing.T) {
		ghost := &auth.Account{ID: "acct-ghost", Email: "ghost@example.com", Role: auth.RoleStudent, IsActive: true}
		ghostToken, err := issuer.IssueAccess(ghost)
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+ghostToken)
		rec := httptest.NewRecorder()
		mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("Expected status 401, got %d", rec.Code)
		}

		missingReq := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		missingRec := httptest.NewRecorder()
		mw.RequireAuth(okHandler()).ServeHTTP(missingRec, missingReq)

		if decodeMessage(t, rec) != decodeMessage(t, missingRec) {
			t.Error("Expected identical messages for unknown account and missing header")
		}
	})
}

func TestRequireAuth_DisabledAccount(t *testing.T) {
	issuer := testIssuer()
	store := storage.NewMemoryStore()
	account := seedAccount(t, store, func(a *auth.Account) {
		a.IsActive = false
	})
	mw := NewAuthMiddleware(issuer, store, testLogger())

	token, err := issuer.IssueAccess(account)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != auth.ErrAccountDisabled.Error() {
		t.Errorf("Expected disabled account message, got %q", msg)
	}
}

func TestRequireAuth_LockedAccount(t *testing.T) {
	issuer := testIssuer()
	store := storage.NewMemoryStore()
	lockedUntil := time.Now().Add(time.Hour)
	account := seedAccount(t, store, func(a *auth.Account) {
		a.LockedUntil = &lockedUntil
	})
	mw := NewAuthMiddleware(issuer, store, testLogger())

	token, err := issuer.IssueAccess(account)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusLocked {
		t.Errorf("Expected status 423, got %d", rec.Code)
	}
}

func TestRequireAuth_ExpiredLockPasses(t *testing.T) {
	issuer := testIssuer()
	store := storage.NewMemoryStore()
	lockedUntil := time.Now().Add(-time.Minute)
	account := seedAccount(t, store, func(a *auth.Account) {
		a.LockedUntil = &lockedUntil
	})
	mw := NewAuthMiddleware(issuer, store, testLogger())

	token, err := issuer.IssueAccess(account)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 after lock expiry, got %d", rec.Code)
	}
}

func TestGetAuthContext_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if GetAuthContext(req) != nil {
		t.Error("Expected nil auth context for unauthenticated request")
	}
}
