// Package storage defines the account persistence contract and its in-memory
// implementation. The postgres subpackage provides the production store.
//
// Stores return ErrNotFound for missing accounts and ErrDuplicateEmail on
// unique-email violations; callers map these to 404 and 409 respectively.
//
// Account mutation is a bare load-modify-save sequence with no optimistic
// concurrency control. The memory store serializes writers behind a mutex; the
// postgres store does not, so two simultaneous failed-login updates on the same
// account can race on the counter. Acceptable at current scale.
package storage
