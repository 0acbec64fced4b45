package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brightpath/brightpath/pkg/auth"
	"github.com/brightpath/brightpath/pkg/observability"
	"github.com/brightpath/brightpath/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// Storage configuration
	Storage storage.Config

	// Redis configuration (distributed rate limiting, optional)
	Redis RedisConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token, password, and lockout settings
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	BcryptCost int

	LockoutThreshold int
	LockoutDuration  time.Duration

	// Maximum active refresh tokens per account
	RefreshTokenCap int
}

// RedisConfig holds Redis connection settings. Redis is optional; when URL is
// empty the service falls back to in-memory rate limiting.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// RateLimitConfig holds fixed-window rate limiter settings
type RateLimitConfig struct {
	Enabled bool

	// Per-IP limit on login and refresh endpoints
	LoginLimit  int
	LoginWindow time.Duration

	// Per-IP limit on all other API endpoints
	GlobalLimit  int
	GlobalWindow time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Redis:         loadRedisConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BRIGHTPATH_HOST", "0.0.0.0"),
		Port:            getEnv("BRIGHTPATH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BRIGHTPATH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BRIGHTPATH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BRIGHTPATH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BRIGHTPATH_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("BRIGHTPATH_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("BRIGHTPATH_HEALTH_PORT", "9090"),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		AccessSecret:     getEnv("BRIGHTPATH_ACCESS_SECRET", ""),
		RefreshSecret:    getEnv("BRIGHTPATH_REFRESH_SECRET", ""),
		AccessTTL:        getEnvDuration("BRIGHTPATH_ACCESS_TTL", auth.DefaultAccessTTL),
		RefreshTTL:       getEnvDuration("BRIGHTPATH_REFRESH_TTL", auth.DefaultRefreshTTL),
		BcryptCost:       getEnvInt("BRIGHTPATH_BCRYPT_COST", auth.DefaultBcryptCost),
		LockoutThreshold: getEnvInt("BRIGHTPATH_LOCKOUT_THRESHOLD", auth.DefaultLockoutThreshold),
		LockoutDuration:  getEnvDuration("BRIGHTPATH_LOCKOUT_DURATION", auth.DefaultLockoutDuration),
		RefreshTokenCap:  getEnvInt("BRIGHTPATH_REFRESH_TOKEN_CAP", 5),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("BRIGHTPATH_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}
	if pgURL := getEnv("BRIGHTPATH_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("BRIGHTPATH_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if timeout := getEnvDuration("BRIGHTPATH_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	return cfg
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("BRIGHTPATH_REDIS_URL", ""),
		Password: getEnv("BRIGHTPATH_REDIS_PASSWORD", ""),
		DB:       getEnvInt("BRIGHTPATH_REDIS_DB", 0),
		PoolSize: getEnvInt("BRIGHTPATH_REDIS_POOL_SIZE", 10),
	}
}

// loadRateLimitConfig loads rate limiter configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:      getEnvBool("BRIGHTPATH_RATE_LIMIT_ENABLED", true),
		LoginLimit:   getEnvInt("BRIGHTPATH_RATE_LIMIT_LOGIN", 10),
		LoginWindow:  getEnvDuration("BRIGHTPATH_RATE_LIMIT_LOGIN_WINDOW", time.Minute),
		GlobalLimit:  getEnvInt("BRIGHTPATH_RATE_LIMIT_GLOBAL", 300),
		GlobalWindow: getEnvDuration("BRIGHTPATH_RATE_LIMIT_GLOBAL_WINDOW", time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("BRIGHTPATH_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BRIGHTPATH_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BRIGHTPATH_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BRIGHTPATH_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BRIGHTPATH_OTEL_SERVICE_NAME", "brightpath-auth"),
		OTelServiceVersion: getEnv("BRIGHTPATH_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BRIGHTPATH_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate auth config
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("access token secret is required")
	}
	if c.Auth.RefreshSecret == "" {
		return fmt.Errorf("refresh token secret is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("access and refresh token secrets must be different")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.LockoutThreshold <= 0 {
		return fmt.Errorf("lockout threshold must be positive")
	}
	if c.Auth.RefreshTokenCap <= 0 {
		return fmt.Errorf("refresh token cap must be positive")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
		// No additional settings required.
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	// Validate rate limit config
	if c.RateLimit.Enabled {
		if c.RateLimit.LoginLimit <= 0 || c.RateLimit.GlobalLimit <= 0 {
			return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
		}
		if c.RateLimit.LoginWindow <= 0 || c.RateLimit.GlobalWindow <= 0 {
			return fmt.Errorf("rate limit windows must be positive when rate limiting is enabled")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
