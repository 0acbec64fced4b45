// Package observability provides structured logging, Prometheus metrics,
// health probes, OpenTelemetry tracing, and graceful shutdown for the
// Brightpath service.
//
// Logging uses a slog-backed JSON Logger with chained field helpers:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("account_id", id).Info("login succeeded")
//
// Metrics cover the auth domain: login outcomes, lockouts, token issuance,
// rate-limit rejections, and HTTP request durations. Health checks aggregate
// database and Redis connectivity and are served on a dedicated port for
// orchestrator probes.
package observability
