package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	EventTypeLogin          EventType = "auth.login"
	EventTypeLoginFailed    EventType = "auth.login_failed"
	EventTypeLockout        EventType = "auth.lockout"
	EventTypeLogout         EventType = "auth.logout"
	EventTypeRegister       EventType = "auth.register"
	EventTypeRefresh        EventType = "auth.refresh"
	EventTypePasswordChange EventType = "auth.password_change"
	EventTypeAccountDelete  EventType = "auth.account_delete"
)

// Event represents a single audit log entry. AccountID is empty when the
// attempt named an unknown email.
type Event struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Action    EventType `json:"action"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
