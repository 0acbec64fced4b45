// Package httputil provides HTTP handler utilities: the platform's JSON
// response envelope, error-to-status mapping, request parsing helpers, and
// request-scoped logging middleware.
//
// Every response uses the envelope
//
//	{"success": bool, "message": string, "data": ...}
//
// with one of the statuses 200/201 (success), 400 (validation), 401 (auth
// failure), 403 (authorization failure), 404 (not found), 409 (conflict),
// 423 (locked), 429 (rate limited), 500 (unexpected). Unexpected errors are
// logged with full detail server-side and surfaced as a generic message;
// internals are never leaked to clients.
package httputil
