package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/contextkeys"
	"github.com/brightpath/brightpath/pkg/httputil"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/storage"
)

// AuthMiddleware verifies access tokens and loads the account behind them
type AuthMiddleware struct {
	issuer *auth.TokenIssuer
	store  storage.AccountStore
	logger *observability.Logger
	now    func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(issuer *auth.TokenIssuer, store storage.AccountStore, logger *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		issuer: issuer,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests
func (m *AuthMiddleware) WithClock(now func() time.Time) *AuthMiddleware {
	m.now = now
	return m
}

// RequireAuth wraps a handler with bearer token authentication.
//
// A missing header, malformed token, expired token, or unknown account all
// produce the same 401 so callers cannot probe which stage failed. Disabled
// accounts get a distinct 401 message and locked accounts get 423, both of
// which require a validly signed token to observe.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := httputil.BearerToken(r)
		if !ok {
			httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
			return
		}

		claims, err := m.issuer.VerifyAccess(token)
		if err != nil {
			httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
			return
		}

		account, err := m.store.GetAccountByID(r.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				m.logger.WithError(err).Error("Failed to load account for token subject")
				httputil.WriteInternalError(w)
				return
			}
			httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
			return
		}

		if !account.IsActive {
			httputil.WriteUnauthenticated(w, auth.ErrAccountDisabled.Error())
			return
		}
		if auth.IsLocked(account, m.now()) {
			httputil.WriteLocked(w, auth.ErrAccountLocked.Error(), map[string]interface{}{
				"locked_until": account.LockedUntil,
			})
			return
		}

		// Last-active bookkeeping must not add latency or fail the request.
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.store.TouchLastActive(ctx, id, m.now()); err != nil {
				m.logger.WithError(err).WithField("account_id", id).Warn("Failed to record last activity")
			}
		}(account.ID)

		authCtx := &auth.AuthContext{
			AccountID:   account.ID,
			Email:       account.Email,
			Role:        account.Role,
			Permissions: account.Permissions,
		}
		ctx := contextkeys.WithValue(r.Context(), contextkeys.AuthKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the auth context from a request, or nil when the
// request was not authenticated.
func GetAuthContext(r *http.Request) *auth.AuthContext {
	value := r.Context().Value(contextkeys.AuthKey)
	if value == nil {
		return nil
	}
	authCtx, ok := value.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
