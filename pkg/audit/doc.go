// Package audit records authentication events for security review.
//
// Every recording is best-effort: the Recorder logs store failures and never
// propagates them, so a broken audit trail cannot block a login.
package audit
