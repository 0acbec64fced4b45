// Package middleware provides HTTP middleware for authentication, role and
// permission gates, and rate limiting.
//
// RequireAuth verifies bearer access tokens and loads the account behind them,
// rejecting disabled and locked accounts before the handler runs. The gates
// (RequireRole, RequirePermission, RequireSelfOrAdmin) build on the auth
// context it stores in the request.
//
// Two rate limiter backends are provided: an in-memory fixed-window limiter
// bounded by an expiring LRU, and a Redis-backed limiter for multi-instance
// deployments. Both fail open when the backing store errors.
package middleware
