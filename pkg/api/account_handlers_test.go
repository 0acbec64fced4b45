package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/rewards"
)

func registerAdmin(t *testing.T, server *Server) (string, *TokenPair) {
	t.Helper()
	return register(t, server, "admin@example.com", "secret1", "admin")
}

func TestListAccounts(t *testing.T) {
	server, _, _ := newTestServer(t)
	_, studentTokens := register(t, server, "alice@example.com", "secret1", "student")
	_, adminTokens := registerAdmin(t, server)

	t.Run("forbidden for students", func(t *testing.T) {
		rec, _ := doJSON(t, server, "GET", "/api/v1/accounts", studentTokens.AccessToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin lists all", func(t *testing.T) {
		rec, env := doJSON(t, server, "GET", "/api/v1/accounts", adminTokens.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d (%s)", rec.Code, env.Message)
		}
		var data struct {
			Accounts []*auth.Account `json:"accounts"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("Failed to decode accounts: %v", err)
		}
		if len(data.Accounts) != 2 {
			t.Errorf("Expected 2 accounts, got %d", len(data.Accounts))
		}
	})
}

func TestDeleteAccount(t *testing.T) {
	server, store, _ := newTestServer(t)
	aliceID, aliceTokens := register(t, server, "alice@example.com", "secret1", "student")
	bobID, bobTokens := register(t, server, "bob@example.com", "secret1", "student")
	_, adminTokens := registerAdmin(t, server)

	t.Run("cannot delete someone else", func(t *testing.T) {
		rec, _ := doJSON(t, server, "DELETE", "/api/v1/accounts/"+bobID, aliceTokens.AccessToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("self delete soft-deletes", func(t *testing.T) {
		rec, _ := doJSON(t, server, "DELETE", "/api/v1/accounts/"+aliceID, aliceTokens.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		account, err := store.GetAccountByID(context.Background(), aliceID)
		if err != nil {
			t.Fatalf("Account must survive soft delete: %v", err)
		}
		if account.IsActive {
			t.Error("Expected the account to be deactivated")
		}
		if !strings.HasPrefix(account.Email, "deleted-") {
			t.Errorf("Expected a mangled email, got %q", account.Email)
		}
		if len(account.RefreshTokens) != 0 {
			t.Errorf("Expected refresh tokens cleared, got %d", len(account.RefreshTokens))
		}

		// The address is free for a new registration.
		register(t, server, "alice@example.com", "secret1", "student")
	})

	t.Run("admin deletes others", func(t *testing.T) {
		rec, _ := doJSON(t, server, "DELETE", "/api/v1/accounts/"+bobID, adminTokens.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		account, _ := store.GetAccountByID(context.Background(), bobID)
		if account.IsActive {
			t.Error("Expected the account to be deactivated")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rec, _ := doJSON(t, server, "DELETE", "/api/v1/accounts/no-such-id", adminTokens.AccessToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	// A deleted caller's still-valid access token no longer passes the
	// middleware.
	t.Run("deleted caller is rejected", func(t *testing.T) {
		rec, env := doJSON(t, server, "GET", "/api/v1/auth/me", bobTokens.AccessToken, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d (%s)", rec.Code, env.Message)
		}
	})
}

func TestGetRewards(t *testing.T) {
	server, _, _ := newTestServer(t)
	aliceID, _ := register(t, server, "alice@example.com", "secret1", "student")
	_, bobTokens := register(t, server, "bob@example.com", "secret1", "student")
	_, adminTokens := registerAdmin(t, server)

	// A login earns the daily bonus.
	_, env := login(t, server, "alice@example.com", "secret1")
	var resp AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}

	t.Run("self", func(t *testing.T) {
		rec, env := doJSON(t, server, "GET", "/api/v1/accounts/"+aliceID+"/rewards", resp.Tokens.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d (%s)", rec.Code, env.Message)
		}
		var summary rewards.Summary
		if err := json.Unmarshal(env.Data, &summary); err != nil {
			t.Fatalf("Failed to decode summary: %v", err)
		}
		if summary.Balance != rewards.DailyLoginCoins {
			t.Errorf("Expected balance %d, got %d", rewards.DailyLoginCoins, summary.Balance)
		}
		if len(summary.Transactions) != 1 {
			t.Errorf("Expected 1 transaction, got %d", len(summary.Transactions))
		}
	})

	t.Run("other account forbidden", func(t *testing.T) {
		rec, _ := doJSON(t, server, "GET", "/api/v1/accounts/"+aliceID+"/rewards", bobTokens.AccessToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		rec, _ := doJSON(t, server, "GET", "/api/v1/accounts/"+aliceID+"/rewards", adminTokens.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

func TestGetAchievements(t *testing.T) {
	server, _, _ := newTestServer(t)
	aliceID, _ := register(t, server, "alice@example.com", "secret1", "student")

	_, env := login(t, server, "alice@example.com", "secret1")
	var resp AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}

	rec, env := doJSON(t, server, "GET", "/api/v1/accounts/"+aliceID+"/achievements", resp.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, env.Message)
	}

	var data struct {
		Achievements []*rewards.Achievement `json:"achievements"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("Failed to decode achievements: %v", err)
	}
	if len(data.Achievements) != 1 {
		t.Fatalf("Expected the first-login achievement, got %d", len(data.Achievements))
	}
	if data.Achievements[0].Code != rewards.AchievementFirstLogin {
		t.Errorf("Expected %q, got %q", rewards.AchievementFirstLogin, data.Achievements[0].Code)
	}
	if data.Achievements[0].UnlockedAt == nil {
		t.Error("Expected the achievement to be unlocked")
	}
}

func TestReportProgress(t *testing.T) {
	server, store, _ := newTestServer(t)
	aliceID, aliceTokens := register(t, server, "alice@example.com", "secret1", "student")

	t.Run("lesson complete", func(t *testing.T) {
		rec, env := doJSON(t, server, "POST", "/api/v1/progress", aliceTokens.AccessToken, ProgressRequest{
			Milestone: rewards.ReasonLessonComplete,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d (%s)", rec.Code, env.Message)
		}
		var data struct {
			CoinsAwarded int64 `json:"coins_awarded"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
		if data.CoinsAwarded != 5 {
			t.Errorf("Expected 5 coins, got %d", data.CoinsAwarded)
		}

		balance, _ := store.GetBalance(context.Background(), aliceID)
		if balance != 5 {
			t.Errorf("Expected balance 5, got %d", balance)
		}
	})

	t.Run("course complete unlocks achievement", func(t *testing.T) {
		rec, _ := doJSON(t, server, "POST", "/api/v1/progress", aliceTokens.AccessToken, ProgressRequest{
			Milestone: rewards.ReasonCourseComplete,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		achievements, err := store.ListAchievements(context.Background(), aliceID)
		if err != nil {
			t.Fatalf("ListAchievements() error = %v", err)
		}
		found := false
		for _, a := range achievements {
			if a.Code == rewards.AchievementCourseComplete && a.UnlockedAt != nil {
				found = true
			}
		}
		if !found {
			t.Error("Expected the course-complete achievement to be unlocked")
		}
	})

	t.Run("unknown milestone", func(t *testing.T) {
		rec, _ := doJSON(t, server, "POST", "/api/v1/progress", aliceTokens.AccessToken, ProgressRequest{
			Milestone: "mint_me_coins",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing milestone", func(t *testing.T) {
		rec, _ := doJSON(t, server, "POST", "/api/v1/progress", aliceTokens.AccessToken, ProgressRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec, _ := doJSON(t, server, "POST", "/api/v1/progress", "", ProgressRequest{
			Milestone: rewards.ReasonQuizPassed,
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})
}
