// Package maintenance runs scheduled cleanup jobs for expired refresh tokens
// and old audit events.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brightpath/brightpath/pkg/audit"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/storage"
)

// Config holds the cleanup schedules and retention windows
type Config struct {
	// TokenPurgeSchedule is the cron schedule for refresh token cleanup
	TokenPurgeSchedule string
	// RefreshTokenTTL bounds how old a stored refresh token may be. Tokens
	// issued earlier than now-TTL are unverifiable anyway and only occupy rows.
	RefreshTokenTTL time.Duration

	// AuditPurgeSchedule is the cron schedule for audit event cleanup
	AuditPurgeSchedule string
	// AuditRetention is how long audit events are kept
	AuditRetention time.Duration
}

// DefaultConfig returns nightly cleanup with a 90 day audit retention
func DefaultConfig(refreshTTL time.Duration) Config {
	return Config{
		TokenPurgeSchedule: "5 0 * * *",
		RefreshTokenTTL:    refreshTTL,
		AuditPurgeSchedule: "15 0 * * *",
		AuditRetention:     90 * 24 * time.Hour,
	}
}

// Scheduler owns the cron runner and the cleanup jobs
type Scheduler struct {
	config   Config
	accounts storage.AccountStore
	audits   audit.Store
	logger   *observability.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewScheduler creates a scheduler. A nil audit store skips the audit job.
func NewScheduler(config Config, accounts storage.AccountStore, audits audit.Store, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		config:   config,
		accounts: accounts,
		audits:   audits,
		logger:   logger,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start registers the jobs and starts the cron runner
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.TokenPurgeSchedule, s.runTokenPurge); err != nil {
		return fmt.Errorf("failed to schedule token purge: %w", err)
	}
	if s.audits != nil {
		if _, err := s.cron.AddFunc(s.config.AuditPurgeSchedule, s.runAuditPurge); err != nil {
			return fmt.Errorf("failed to schedule audit purge: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithFields(map[string]interface{}{
		"token_purge_schedule": s.config.TokenPurgeSchedule,
		"audit_purge_schedule": s.config.AuditPurgeSchedule,
	}).Info("Maintenance scheduler started")
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runTokenPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if purged, err := s.PurgeExpiredTokens(ctx); err != nil {
		s.logger.WithError(err).Error("Refresh token purge failed")
	} else {
		s.logger.WithField("purged", purged).Info("Refresh token purge completed")
	}
}

func (s *Scheduler) runAuditPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if purged, err := s.PurgeOldAuditEvents(ctx); err != nil {
		s.logger.WithError(err).Error("Audit event purge failed")
	} else {
		s.logger.WithField("purged", purged).Info("Audit event purge completed")
	}
}

// PurgeExpiredTokens removes refresh tokens issued before now-TTL
func (s *Scheduler) PurgeExpiredTokens(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.RefreshTokenTTL)
	return s.accounts.PurgeRefreshTokensBefore(ctx, cutoff)
}

// PurgeOldAuditEvents removes audit events older than the retention window
func (s *Scheduler) PurgeOldAuditEvents(ctx context.Context) (int, error) {
	if s.audits == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-s.config.AuditRetention)
	return s.audits.PurgeEventsBefore(ctx, cutoff)
}
