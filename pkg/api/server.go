package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/brightpath/brightpath/pkg/audit"
	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/httputil"
	"github.com/brightpath/brightpath/pkg/middleware"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/rewards"
	"github.com/brightpath/brightpath/pkg/storage"
)

// ServerConfig wires the server's collaborators. Store, Issuer, Hasher, and
// Logger are required; Rewards, Metrics, and LimitStore are optional and
// disable their feature when nil.
type ServerConfig struct {
	Store   storage.AccountStore
	Issuer  *auth.TokenIssuer
	Hasher  *auth.PasswordHasher
	Lockout auth.LockoutPolicy

	// RefreshTokenCap bounds the stored refresh tokens per account; the
	// oldest entry is evicted beyond it. Zero means the default of 5.
	RefreshTokenCap int

	Auditor *audit.Recorder
	Rewards *rewards.Service
	Metrics *observability.Metrics
	Logger  *observability.Logger

	// Rate limiting. A nil LimitStore disables it entirely.
	LimitStore   middleware.LimitStore
	LoginLimit   int
	LoginWindow  time.Duration
	GlobalLimit  int
	GlobalWindow time.Duration

	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64

	// TraceRequests wraps the handler chain with otelhttp when true.
	TraceRequests bool
}

// DefaultRefreshTokenCap is the stored refresh token limit per account
const DefaultRefreshTokenCap = 5

// Server is the HTTP API server
type Server struct {
	config          ServerConfig
	router          *mux.Router
	handler         http.Handler
	authMW          *middleware.AuthMiddleware
	authHandlers    *AuthHandlers
	accountHandlers *AccountHandlers
	loginLimiter    *middleware.RateLimiter
	globalLimiter   *middleware.RateLimiter
}

// NewServer creates the API server and registers all routes
func NewServer(config ServerConfig) *Server {
	if config.RefreshTokenCap <= 0 {
		config.RefreshTokenCap = DefaultRefreshTokenCap
	}
	if config.LoginWindow <= 0 {
		config.LoginWindow = time.Minute
	}
	if config.GlobalWindow <= 0 {
		config.GlobalWindow = time.Minute
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	if config.Auditor == nil {
		config.Auditor = audit.NewRecorder(nil, config.Logger)
	}

	s := &Server{
		config: config,
		router: mux.NewRouter(),
		authMW: middleware.NewAuthMiddleware(config.Issuer, config.Store, config.Logger),
	}

	s.authHandlers = NewAuthHandlers(config.Store, config.Issuer, config.Hasher, config.Lockout,
		config.RefreshTokenCap, config.Auditor, config.Rewards, config.Metrics, config.Logger)
	s.accountHandlers = NewAccountHandlers(config.Store, config.Rewards, config.Auditor,
		config.Metrics, config.Logger)

	if config.LimitStore != nil {
		s.loginLimiter = middleware.NewRateLimiter(config.LimitStore, config.LoginLimit,
			config.LoginWindow, "login", config.Logger, config.Metrics)
		s.globalLimiter = middleware.NewRateLimiter(config.LimitStore, config.GlobalLimit,
			config.GlobalWindow, "global", config.Logger, config.Metrics)
	}

	s.setupRoutes()

	chain := httputil.Chain(
		httputil.Recovery(config.Logger),
		httputil.RequestLogging(config.Logger),
		httputil.MaxBytes(config.MaxBodyBytes),
	)
	s.handler = chain(s.router)
	if config.TraceRequests {
		s.handler = otelhttp.NewHandler(s.handler, "brightpath.api")
	}
	return s
}

// WithClock overrides the time source of the server's handlers and auth
// middleware, for tests. The token issuer keeps its own clock.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.authHandlers.WithClock(now)
	s.accountHandlers.WithClock(now)
	s.authMW.WithClock(now)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Public routes. Login and refresh share the stricter limiter since both
	// accept credentials.
	s.handle("/api/v1/auth/register", "POST", s.limited(s.globalLimiter, http.HandlerFunc(s.authHandlers.register)))
	s.handle("/api/v1/auth/login", "POST", s.limited(s.loginLimiter, http.HandlerFunc(s.authHandlers.login)))
	s.handle("/api/v1/auth/refresh", "POST", s.limited(s.loginLimiter, http.HandlerFunc(s.authHandlers.refresh)))

	// Authenticated routes
	s.handle("/api/v1/auth/logout", "POST", s.authed(http.HandlerFunc(s.authHandlers.logout)))
	s.handle("/api/v1/auth/me", "GET", s.authed(http.HandlerFunc(s.authHandlers.getMe)))
	s.handle("/api/v1/auth/me", "PUT", s.authed(http.HandlerFunc(s.authHandlers.updateMe)))
	s.handle("/api/v1/auth/password", "PUT", s.authed(http.HandlerFunc(s.authHandlers.changePassword)))

	// Account administration
	s.handle("/api/v1/accounts", "GET",
		s.authed(middleware.RequireRole(auth.RoleAdmin)(http.HandlerFunc(s.accountHandlers.listAccounts))))
	s.handle("/api/v1/accounts/{id}", "DELETE",
		s.authed(middleware.RequireSelfOrAdmin("id")(http.HandlerFunc(s.accountHandlers.deleteAccount))))

	// Rewards routes, only when a rewards service is wired
	if s.config.Rewards != nil {
		s.handle("/api/v1/accounts/{id}/rewards", "GET",
			s.authed(middleware.RequireSelfOrAdmin("id")(http.HandlerFunc(s.accountHandlers.getRewards))))
		s.handle("/api/v1/accounts/{id}/achievements", "GET",
			s.authed(middleware.RequireSelfOrAdmin("id")(http.HandlerFunc(s.accountHandlers.getAchievements))))
		s.handle("/api/v1/progress", "POST",
			s.authed(middleware.RequirePermission(auth.PermissionProgressWrite)(http.HandlerFunc(s.accountHandlers.reportProgress))))
	}
}

// handle registers a route, wrapping it with per-route metrics when enabled
func (s *Server) handle(path, method string, handler http.Handler) {
	if s.config.Metrics != nil {
		handler = s.config.Metrics.InstrumentHandler(path, handler)
	}
	s.router.Handle(path, handler).Methods(method)
}

// authed applies the global limiter and the authentication middleware
func (s *Server) authed(handler http.Handler) http.Handler {
	return s.limited(s.globalLimiter, s.authMW.RequireAuth(handler))
}

func (s *Server) limited(limiter *middleware.RateLimiter, handler http.Handler) http.Handler {
	if limiter == nil {
		return handler
	}
	return limiter.Handler(handler)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
