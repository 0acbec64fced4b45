package auth

import "time"

// Default lockout parameters
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 2 * time.Hour
)

// LockoutPolicy is the account lockout state machine. State lives on the
// account (FailedLogins, LockedUntil); the policy applies transitions.
//
// Two simultaneous failed attempts on the same account are a bare
// read-modify-write against the store and can under- or over-count
// FailedLogins. The in-memory store serializes writers per account; the
// postgres store does not.
type LockoutPolicy struct {
	Threshold    int
	LockDuration time.Duration
}

// DefaultLockoutPolicy returns the production policy: lock for 2 hours after
// 5 consecutive failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold:    DefaultLockoutThreshold,
		LockDuration: DefaultLockoutDuration,
	}
}

// IsLocked reports whether the account is locked at the given instant.
func IsLocked(account *Account, now time.Time) bool {
	return account.LockedUntil != nil && now.Before(*account.LockedUntil)
}

// IsLocked reports whether the account is locked at the given instant
func (p LockoutPolicy) IsLocked(account *Account, now time.Time) bool {
	return IsLocked(account, now)
}

// OnFailure applies a failed authentication attempt and reports whether the
// account is locked afterwards.
//
// Transitions:
//   - Unlocked: increment the counter; reaching the threshold locks the
//     account for LockDuration.
//   - Locked, lock still active: no change. Repeated attempts do not extend
//     the lock.
//   - Locked, lock expired: the lock clears and this attempt counts as
//     failure #1.
func (p LockoutPolicy) OnFailure(account *Account, now time.Time) bool {
	if account.LockedUntil != nil {
		if now.Before(*account.LockedUntil) {
			return true
		}
		account.LockedUntil = nil
		account.FailedLogins = 1
		return false
	}

	account.FailedLogins++
	if account.FailedLogins >= p.Threshold {
		until := now.Add(p.LockDuration)
		account.LockedUntil = &until
		return true
	}
	return false
}

// OnSuccess resets the lockout state after a successful authentication.
// The caller must have rejected genuinely locked accounts before verifying
// the password, so success while locked cannot occur.
func (p LockoutPolicy) OnSuccess(account *Account) {
	account.FailedLogins = 0
	account.LockedUntil = nil
}
