// Package api exposes the HTTP surface: registration, login, token refresh,
// logout, profile and password management, account administration, and the
// rewards endpoints. Handlers are grouped per concern and register their own
// routes on the shared gorilla/mux router.
//
// Every response uses the {success, message, data} envelope from pkg/httputil.
package api
