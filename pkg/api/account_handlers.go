package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/brightpath/brightpath/pkg/audit"
	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/httputil"
	"github.com/brightpath/brightpath/pkg/middleware"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/rewards"
	"github.com/brightpath/brightpath/pkg/storage"
)

const (
	defaultPageSize     = 50
	maxPageSize         = 200
	defaultRewardsLimit = 20
)

// AccountHandlers implements account administration and the rewards routes
type AccountHandlers struct {
	store   storage.AccountStore
	rewards *rewards.Service
	auditor *audit.Recorder
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
}

// NewAccountHandlers creates the account handler group. The rewards service
// may be nil; the rewards routes are then not registered.
func NewAccountHandlers(store storage.AccountStore, rewardsSvc *rewards.Service, auditor *audit.Recorder, metrics *observability.Metrics, logger *observability.Logger) *AccountHandlers {
	return &AccountHandlers{
		store:   store,
		rewards: rewardsSvc,
		auditor: auditor,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests
func (h *AccountHandlers) WithClock(now func() time.Time) *AccountHandlers {
	h.now = now
	return h
}

// listAccounts handles GET /api/v1/accounts. Admin only, enforced by the
// router.
func (h *AccountHandlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	accounts, err := h.store.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list accounts")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, "accounts", map[string]interface{}{
		"accounts": accounts,
		"limit":    limit,
		"offset":   offset,
	})
}

// deleteAccount handles DELETE /api/v1/accounts/{id}. Accounts are never
// hard-deleted; the active flag flips and the email is mangled so the address
// can be registered again.
func (h *AccountHandlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccountByID(ctx, id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if account.IsActive {
		previousEmail := account.Email
		account.SoftDelete(h.now())
		if err := h.store.UpdateAccount(ctx, account); err != nil {
			h.logger.WithError(err).Error("Failed to soft-delete account")
			httputil.WriteInternalError(w)
			return
		}
		h.auditor.RecordRequest(r, &audit.Event{
			AccountID: account.ID,
			Email:     previousEmail,
			Action:    audit.EventTypeAccountDelete,
			Success:   true,
		})
	}

	httputil.WriteSuccess(w, "account deleted", nil)
}

// getRewards handles GET /api/v1/accounts/{id}/rewards
func (h *AccountHandlers) getRewards(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultRewardsLimit)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultRewardsLimit
	}

	summary, err := h.rewards.Summary(r.Context(), id, limit)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, "rewards", summary)
}

// getAchievements handles GET /api/v1/accounts/{id}/achievements
func (h *AccountHandlers) getAchievements(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}

	achievements, err := h.rewards.Achievements(r.Context(), id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, "achievements", map[string]interface{}{
		"achievements": achievements,
	})
}

// reportProgress handles POST /api/v1/progress. The caller reports a learning
// milestone for themselves; coin awards are looked up from a fixed table so
// clients cannot mint arbitrary amounts.
func (h *AccountHandlers) reportProgress(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
		return
	}

	var req ProgressRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Milestone == "" {
		httputil.WriteValidationError(w, "milestone is required")
		return
	}

	coins, err := h.rewards.ProgressMilestone(r.Context(), authCtx.AccountID, req.Milestone)
	if err != nil {
		switch {
		case errors.Is(err, rewards.ErrUnknownMilestone):
			httputil.WriteValidationError(w, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			httputil.WriteNotFound(w, storage.ErrNotFound.Error())
		default:
			h.logger.WithError(err).Error("Failed to record progress")
			httputil.WriteInternalError(w)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.CoinsAwardedTotal.WithLabelValues(req.Milestone).Inc()
	}

	httputil.WriteSuccess(w, "progress recorded", map[string]interface{}{
		"milestone":     req.Milestone,
		"coins_awarded": coins,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
