package middleware

import (
	"net/http"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/httputil"
)

// RequireRole creates middleware that allows only the listed roles. There is
// no implicit admin pass; routes that should admit admins list RoleAdmin.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
				return
			}

			for _, role := range roles {
				if authCtx.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteForbidden(w, auth.ErrForbidden.Error())
		})
	}
}

// RequirePermission creates middleware that checks a single permission
func RequirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
				return
			}

			if !authCtx.HasPermission(perm) {
				httputil.WriteForbidden(w, auth.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission creates middleware that passes when the caller holds at
// least one of the listed permissions.
func RequireAnyPermission(perms ...auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
				return
			}

			if !authCtx.HasAnyPermission(perms...) {
				httputil.WriteForbidden(w, auth.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrAdmin creates middleware for account-scoped routes. The caller
// must either be an admin or the account named by the path variable.
func RequireSelfOrAdmin(idParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthenticated(w, auth.ErrUnauthenticated.Error())
				return
			}

			id, err := httputil.PathVar(r, idParam)
			if err != nil {
				httputil.WriteValidationError(w, "missing account id")
				return
			}
			if !authCtx.IsAdmin() && authCtx.AccountID != id {
				httputil.WriteForbidden(w, auth.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
