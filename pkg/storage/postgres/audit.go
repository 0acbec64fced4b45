package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brightpath/brightpath/pkg/audit"
)

// RecordEvent inserts an audit event. Empty account ids are stored as NULL so
// the column can reference accounts without a foreign key on failed attempts.
func (s *Store) RecordEvent(ctx context.Context, event *audit.Event) error {
	query := `
		INSERT INTO audit_events (account_id, email, action, success, reason, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var accountID sql.NullString
	if event.AccountID != "" {
		accountID = sql.NullString{String: event.AccountID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		accountID,
		event.Email,
		string(event.Action),
		event.Success,
		event.Reason,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListEventsByAccount returns the account's events, newest first
func (s *Store) ListEventsByAccount(ctx context.Context, accountID string, limit int) ([]*audit.Event, error) {
	query := `
		SELECT id, COALESCE(account_id, ''), email, action, success, reason, ip_address, user_agent, created_at
		FROM audit_events
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		event := &audit.Event{}
		var action string
		err := rows.Scan(
			&event.ID,
			&event.AccountID,
			&event.Email,
			&action,
			&event.Success,
			&event.Reason,
			&event.IPAddress,
			&event.UserAgent,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.Action = audit.EventType(action)
		events = append(events, event)
	}
	return events, rows.Err()
}

// PurgeEventsBefore removes events older than the cutoff
func (s *Store) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
