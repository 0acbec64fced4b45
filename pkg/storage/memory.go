package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brightpath/brightpath/pkg/audit"
	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/rewards"
)

// MemoryStore is a mutex-guarded in-memory store used for development mode and
// tests. It implements AccountStore, audit.Store, and rewards.Store. The
// single mutex serializes all writers, which makes the failed-login
// read-modify-write safe within one process.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*auth.Account // keyed by id
	byEmail  map[string]string        // normalized email -> id

	auditEvents  []*audit.Event
	nextEventID  int64
	transactions []*rewards.Transaction
	nextTxID     int64
	achievements map[string]*rewards.Achievement // keyed by accountID/code
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*auth.Account),
		byEmail:      make(map[string]string),
		nextEventID:  1,
		nextTxID:     1,
		achievements: make(map[string]*rewards.Achievement),
	}
}

// clone guards callers from mutating shared state through returned pointers
func cloneAccount(a *auth.Account) *auth.Account {
	c := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		c.LockedUntil = &t
	}
	if a.LastActive != nil {
		t := *a.LastActive
		c.LastActive = &t
	}
	if a.PasswordResetExpiry != nil {
		t := *a.PasswordResetExpiry
		c.PasswordResetExpiry = &t
	}
	c.Permissions = append([]auth.Permission(nil), a.Permissions...)
	c.RefreshTokens = append([]auth.RefreshTokenRecord(nil), a.RefreshTokens...)
	return &c
}

// CreateAccount persists a new account
func (s *MemoryStore) CreateAccount(ctx context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := auth.NormalizeEmail(account.Email)
	if _, taken := s.byEmail[email]; taken {
		return ErrDuplicateEmail
	}
	account.Email = email
	s.accounts[account.ID] = cloneAccount(account)
	s.byEmail[email] = account.ID
	return nil
}

// GetAccountByID returns the account with the given id
func (s *MemoryStore) GetAccountByID(ctx context.Context, id string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(account), nil
}

// GetAccountByEmail returns the account with the given normalized email
func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

// UpdateAccount persists all mutable fields
func (s *MemoryStore) UpdateAccount(ctx context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Email != account.Email {
		// Email changed (soft delete mangling or profile update). Reject a
		// collision before touching the index so a failed update leaves the
		// account reachable by its current email.
		normalized := auth.NormalizeEmail(account.Email)
		if other, taken := s.byEmail[normalized]; taken && other != account.ID {
			return ErrDuplicateEmail
		}
		delete(s.byEmail, existing.Email)
		account.Email = normalized
		s.byEmail[account.Email] = account.ID
	}
	account.UpdatedAt = time.Now()
	s.accounts[account.ID] = cloneAccount(account)
	return nil
}

// ListAccounts returns accounts ordered by creation time
func (s *MemoryStore) ListAccounts(ctx context.Context, limit, offset int) ([]*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*auth.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, cloneAccount(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*auth.Account{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// AddRefreshToken appends a digest, evicting the oldest entries beyond cap
func (s *MemoryStore) AddRefreshToken(ctx context.Context, accountID, digest string, issuedAt time.Time, cap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	account.RefreshTokens = append(account.RefreshTokens, auth.RefreshTokenRecord{
		Digest:   digest,
		IssuedAt: issuedAt,
	})
	if cap > 0 && len(account.RefreshTokens) > cap {
		// Stable sort keeps insertion order among tokens issued at the same
		// instant, so eviction of "the oldest" is deterministic.
		sort.SliceStable(account.RefreshTokens, func(i, j int) bool {
			return account.RefreshTokens[i].IssuedAt.Before(account.RefreshTokens[j].IssuedAt)
		})
		account.RefreshTokens = account.RefreshTokens[len(account.RefreshTokens)-cap:]
	}
	return nil
}

// RemoveRefreshToken removes a single digest, leaving others intact
func (s *MemoryStore) RemoveRefreshToken(ctx context.Context, accountID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	kept := account.RefreshTokens[:0]
	for _, rt := range account.RefreshTokens {
		if rt.Digest != digest {
			kept = append(kept, rt)
		}
	}
	account.RefreshTokens = kept
	return nil
}

// ClearRefreshTokens removes every stored digest for the account
func (s *MemoryStore) ClearRefreshTokens(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	account.RefreshTokens = nil
	return nil
}

// HasRefreshToken reports whether the digest is in the account's active list
func (s *MemoryStore) HasRefreshToken(ctx context.Context, accountID, digest string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return false, ErrNotFound
	}
	for _, rt := range account.RefreshTokens {
		if rt.Digest == digest {
			return true, nil
		}
	}
	return false, nil
}

// TouchLastActive updates the last-active timestamp
func (s *MemoryStore) TouchLastActive(ctx context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	account.LastActive = &at
	return nil
}

// PurgeRefreshTokensBefore removes entries issued before the cutoff
func (s *MemoryStore) PurgeRefreshTokensBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for _, account := range s.accounts {
		kept := account.RefreshTokens[:0]
		for _, rt := range account.RefreshTokens {
			if rt.IssuedAt.Before(cutoff) {
				purged++
			} else {
				kept = append(kept, rt)
			}
		}
		account.RefreshTokens = kept
	}
	return purged, nil
}
