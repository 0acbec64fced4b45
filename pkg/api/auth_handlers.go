package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/brightpath/pkg/audit"
	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/httputil"
	"github.com/brightpath/brightpath/pkg/middleware"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/rewards"
	"github.com/brightpath/brightpath/pkg/storage"
)

// AuthHandlers implements the authentication routes
type AuthHandlers struct {
	store      storage.AccountStore
	issuer     *auth.TokenIssuer
	hasher     *auth.PasswordHasher
	lockout    auth.LockoutPolicy
	refreshCap int
	auditor    *audit.Recorder
	rewards    *rewards.Service
	metrics    *observability.Metrics
	logger     *observability.Logger
	now        func() time.Time
}

// NewAuthHandlers creates the authentication handler group. The rewards
// service and metrics may be nil; both are best-effort collaborators.
func NewAuthHandlers(store storage.AccountStore, issuer *auth.TokenIssuer, hasher *auth.PasswordHasher, lockout auth.LockoutPolicy, refreshCap int, auditor *audit.Recorder, rewardsSvc *rewards.Service, metrics *observability.Metrics, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		store:      store,
		issuer:     issuer,
		hasher:     hasher,
		lockout:    lockout,
		refreshCap: refreshCap,
		auditor:    auditor,
		rewards:    rewardsSvc,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for tests
func (h *AuthHandlers) WithClock(now func() time.Time) *AuthHandlers {
	h.now = now
	return h
}

// register handles POST /api/v1/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if !validEmail(email) {
		httputil.WriteValidationError(w, "a valid email address is required")
		return
	}
	if len(req.Password) < MinPasswordLength {
		httputil.WriteValidationError(w, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		return
	}

	role := auth.Role(req.Role)
	if req.Role == "" {
		role = auth.RoleStudent
	}
	if !role.Valid() {
		httputil.WriteValidationError(w, "role must be one of student, instructor, admin")
		return
	}

	digest, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		httputil.WriteInternalError(w)
		return
	}

	now := h.now()
	account := &auth.Account{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: digest,
		Role:           role,
		Permissions:    auth.DerivePermissions(role),
		IsActive:       true,
		Profile:        req.Profile,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.CreateAccount(r.Context(), account); err != nil {
		if err == storage.ErrDuplicateEmail {
			httputil.WriteConflict(w, storage.ErrDuplicateEmail.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to create account")
		httputil.WriteInternalError(w)
		return
	}

	tokens, err := h.issuePair(r, account)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token pair after registration")
		httputil.WriteInternalError(w)
		return
	}

	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(string(role)).Inc()
	}
	h.auditor.RecordRequest(r, &audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		Action:    audit.EventTypeRegister,
		Success:   true,
	})

	httputil.WriteCreated(w, "account registered", &AuthResponse{Account: account, Tokens: tokens})
}

// login handles POST /api/v1/auth/login.
//
// Unknown account, wrong password, and wrong role all answer with the same
// message and status. The lock check runs before password verification.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteValidationError(w, "email and password are required")
		return
	}

	ctx := r.Context()
	email := auth.NormalizeEmail(req.Email)

	account, err := h.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if err == storage.ErrNotFound {
			h.recordLoginFailure(r, "", email, "unknown account")
			httputil.WriteUnauthenticated(w, auth.ErrInvalidCredentials.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to load account for login")
		httputil.WriteInternalError(w)
		return
	}

	if !account.IsActive {
		h.recordLoginFailure(r, account.ID, email, "account disabled")
		httputil.WriteUnauthenticated(w, auth.ErrAccountDisabled.Error())
		return
	}

	now := h.now()
	if h.lockout.IsLocked(account, now) {
		h.recordLoginFailure(r, account.ID, email, "account locked")
		if h.metrics != nil {
			h.metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		}
		httputil.WriteLocked(w, auth.ErrAccountLocked.Error(), map[string]interface{}{
			"locked_until": account.LockedUntil,
		})
		return
	}

	if req.Role != "" && auth.Role(req.Role) != account.Role {
		h.failLogin(w, r, account, now, "role mismatch")
		return
	}

	if err := h.hasher.Verify(req.Password, account.PasswordDigest); err != nil {
		if err == auth.ErrNoPasswordDigest {
			h.logger.WithField("account_id", account.ID).Error("Account has no password digest")
			httputil.WriteInternalError(w)
			return
		}
		h.failLogin(w, r, account, now, "wrong password")
		return
	}

	h.lockout.OnSuccess(account)
	account.UpdatedAt = now
	if err := h.store.UpdateAccount(ctx, account); err != nil {
		h.logger.WithError(err).Error("Failed to persist login state")
		httputil.WriteInternalError(w)
		return
	}

	tokens, err := h.issuePair(r, account)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token pair")
		httputil.WriteInternalError(w)
		return
	}

	if h.rewards != nil {
		if awarded, err := h.rewards.DailyLoginBonus(ctx, account.ID); err != nil {
			h.logger.WithError(err).WithField("account_id", account.ID).Warn("Daily login bonus failed")
		} else if awarded && h.metrics != nil {
			h.metrics.CoinsAwardedTotal.WithLabelValues(rewards.ReasonDailyLogin).Inc()
		}
	}

	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	}
	h.auditor.RecordRequest(r, &audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		Action:    audit.EventTypeLogin,
		Success:   true,
	})

	httputil.WriteSuccess(w, "login successful", &AuthResponse{Account: account, Tokens: tokens})
}

// failLogin applies a lockout transition for a failed attempt and writes the
// uniform rejection. The attempt that crosses the threshold still answers 401
// but carries the lock expiry; only subsequent attempts answer 423.
func (h *AuthHandlers) failLogin(w http.ResponseWriter, r *http.Request, account *auth.Account, now time.Time, reason string) {
	locked := h.lockout.OnFailure(account, now)
	account.UpdatedAt = now
	if err := h.store.UpdateAccount(r.Context(), account); err != nil {
		h.logger.WithError(err).WithField("account_id", account.ID).Error("Failed to persist lockout state")
	}

	h.recordLoginFailure(r, account.ID, account.Email, reason)
	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
	}

	if locked {
		if h.metrics != nil {
			h.metrics.AccountLockoutsTotal.Inc()
		}
		h.auditor.RecordRequest(r, &audit.Event{
			AccountID: account.ID,
			Email:     account.Email,
			Action:    audit.EventTypeLockout,
			Success:   true,
			Reason:    reason,
		})
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{
			Success: false,
			Message: auth.ErrInvalidCredentials.Error(),
			Data:    map[string]interface{}{"locked_until": account.LockedUntil},
		})
		return
	}

	httputil.WriteUnauthenticated(w, auth.ErrInvalidCredentials.Error())
}

func (h *AuthHandlers) recordLoginFailure(r *http.Request, accountID, email, reason string) {
	h.auditor.RecordRequest(r, &audit.Event{
		AccountID: accountID,
		Email:     email,
		Action:    audit.EventTypeLoginFailed,
		Success:   false,
		Reason:    reason,
	})
}

// refresh handles POST /api/v1/auth/refresh. The refresh token must verify
// against the refresh secret and still appear in the account's stored digest
// list; it is not rotated, so reuse within its lifetime is allowed.
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteValidationError(w, "refresh_token is required")
		return
	}

	ctx := r.Context()
	claims, err := h.issuer.VerifyRefresh(req.RefreshToken)
	if err != nil {
		if h.metrics != nil {
			reason := "malformed"
			if err == auth.ErrTokenExpired {
				reason = "expired"
			}
			h.metrics.TokenFailuresTotal.WithLabelValues(reason).Inc()
		}
		httputil.WriteUnauthenticated(w, auth.ErrRefreshNotActive.Error())
		return
	}

	has, err := h.store.HasRefreshToken(ctx, claims.Subject, auth.DigestToken(req.RefreshToken))
	if err != nil && err != storage.ErrNotFound {
		h.logger.WithError(err).Error("Failed to check refresh token")
		httputil.WriteInternalError(w)
		return
	}
	if !has {
		httputil.WriteUnauthenticated(w, auth.ErrRefreshNotActive.Error())
		return
	}

	account, err := h.store.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if err == storage.ErrNotFound {
			httputil.WriteUnauthenticated(w, auth.ErrRefreshNotActive.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to load account for refresh")
		httputil.WriteInternalError(w)
		return
	}
	if !account.IsActive {
		httputil.WriteUnauthenticated(w, auth.ErrAccountDisabled.Error())
		return
	}
	if h.lockout.IsLocked(account, h.now()) {
		httputil.WriteLocked(w, auth.ErrAccountLocked.Error(), map[string]interface{}{
			"locked_until": account.LockedUntil,
		})
		return
	}

	access, err := h.issuer.IssueAccess(account)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue access token")
		httputil.WriteInternalError(w)
		return
	}
	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues("access").Inc()
	}
	h.auditor.RecordRequest(r, &audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		Action:    audit.EventTypeRefresh,
		Success:   true,
	})

	httputil.WriteSuccess(w, "token refreshed", map[string]interface{}{
		"access_token": access,
		"expires_in":   int64(h.issuer.AccessTTL().Seconds()),
	})
}

// logout handles POST /api/v1/auth/logout. With a refresh token in the body
// only that token is revoked; without one the whole list is cleared.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
		return
	}

	var req LogoutRequest
	// An empty or absent body means "log out everywhere".
	_ = httputil.ParseJSON(r, &req)

	ctx := r.Context()
	var err error
	if req.RefreshToken != "" {
		err = h.store.RemoveRefreshToken(ctx, authCtx.AccountID, auth.DigestToken(req.RefreshToken))
	} else {
		err = h.store.ClearRefreshTokens(ctx, authCtx.AccountID)
	}
	if err != nil && err != storage.ErrNotFound {
		h.logger.WithError(err).Error("Failed to revoke refresh tokens")
		httputil.WriteInternalError(w)
		return
	}

	h.auditor.RecordRequest(r, &audit.Event{
		AccountID: authCtx.AccountID,
		Email:     authCtx.Email,
		Action:    audit.EventTypeLogout,
		Success:   true,
	})

	httputil.WriteSuccess(w, "logged out", nil)
}

// getMe handles GET /api/v1/auth/me
func (h *AuthHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
		return
	}

	account, err := h.store.GetAccountByID(r.Context(), authCtx.AccountID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, "account", account)
}

// updateMe handles PUT /api/v1/auth/me. Only the profile changes; role and
// permissions are not writable through this route.
func (h *AuthHandlers) updateMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
		return
	}

	var req UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccountByID(ctx, authCtx.AccountID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	account.Profile = req.Profile
	account.UpdatedAt = h.now()
	if err := h.store.UpdateAccount(ctx, account); err != nil {
		h.logger.WithError(err).Error("Failed to update profile")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, "profile updated", account)
}

// changePassword handles PUT /api/v1/auth/password. A successful change
// revokes every stored refresh token.
func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
		return
	}

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.NewPassword) < MinPasswordLength {
		httputil.WriteValidationError(w, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccountByID(ctx, authCtx.AccountID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.hasher.Verify(req.CurrentPassword, account.PasswordDigest); err != nil {
		if err == auth.ErrNoPasswordDigest {
			h.logger.WithField("account_id", account.ID).Error("Account has no password digest")
			httputil.WriteInternalError(w)
			return
		}
		httputil.WriteUnauthenticated(w, auth.ErrInvalidCredentials.Error())
		return
	}

	digest, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		httputil.WriteInternalError(w)
		return
	}

	account.PasswordDigest = digest
	account.UpdatedAt = h.now()
	if err := h.store.UpdateAccount(ctx, account); err != nil {
		h.logger.WithError(err).Error("Failed to store new password")
		httputil.WriteInternalError(w)
		return
	}
	if err := h.store.ClearRefreshTokens(ctx, account.ID); err != nil {
		h.logger.WithError(err).WithField("account_id", account.ID).Warn("Failed to clear refresh tokens after password change")
	}

	h.auditor.RecordRequest(r, &audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		Action:    audit.EventTypePasswordChange,
		Success:   true,
	})

	httputil.WriteSuccess(w, "password changed", nil)
}

// issuePair mints an access/refresh pair and stores the refresh digest,
// evicting the oldest entry beyond the cap.
func (h *AuthHandlers) issuePair(r *http.Request, account *auth.Account) (*TokenPair, error) {
	access, err := h.issuer.IssueAccess(account)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := h.issuer.IssueRefresh(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	if err := h.store.AddRefreshToken(r.Context(), account.ID, auth.DigestToken(refresh), h.now(), h.refreshCap); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues("access").Inc()
		h.metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(h.issuer.AccessTTL().Seconds()),
	}, nil
}
