// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure: JSON logging over
// stdlib slog, Prometheus metric collection for the authorization path,
// health probes over PostgreSQL and Redis, graceful shutdown, and OTLP
// trace/metric export.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, nil)
//	logger.WithField("workspace_id", wsID).Info("membership resolved")
//
// # Prometheus Metrics
//
// Initialize and record:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.AuthzDecisionsTotal.WithLabelValues("denied").Inc()
//	metrics.CacheHitsTotal.WithLabelValues("shared").Inc()
//
// # Health Checks
//
// Configure the checker with the dependencies the authorization service
// needs. A PostgreSQL outage is unhealthy; a Redis outage only degrades,
// since permission resolution falls back to the store.
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
// Initialize export:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		ServiceName: "loomd",
//		Endpoint:    "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
