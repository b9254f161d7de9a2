// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	LOOM_HOST="0.0.0.0"
//	LOOM_PORT="8080"
//	LOOM_HEALTH_PORT="9090"
//	LOOM_READ_TIMEOUT="15s"
//	LOOM_WRITE_TIMEOUT="15s"
//
// Database and cache settings:
//
//	LOOM_POSTGRES_URL="postgres://localhost/loom"
//	LOOM_POSTGRES_MAX_CONNS="25"
//	LOOM_REDIS_URL="redis://localhost:6379"
//	LOOM_REDIS_POOL_SIZE="10"
//
// Authorization settings:
//
//	LOOM_AUTHZ_MEMBER_TTL="30s"
//	LOOM_AUTHZ_PERMISSIONS_TTL="60s"
//	LOOM_AUTHZ_CONTEXT_TTL="60s"
//	LOOM_AUTHZ_L1_CACHE_SIZE="4096"  # 0 disables the in-process tier
//
// Identity settings:
//
//	LOOM_OIDC_ENABLED="true"
//	LOOM_OIDC_ISSUER_URL="https://auth.example.com"
//	LOOM_OIDC_CLIENT_ID="loom"
//	LOOM_OIDC_CLIENT_SECRET="..."
//	LOOM_OIDC_REDIRECT_URL="https://loom.example.com/auth/callback"
//
// Audit settings:
//
//	LOOM_AUDIT_ENABLED="true"
//	LOOM_AUDIT_RETENTION_DAYS="90"
//	LOOM_AUDIT_SWEEP_SCHEDULE="0 3 * * *"
//
// Observability settings:
//
//	LOOM_LOG_LEVEL="info"  # debug, info, warn, error
//	LOOM_METRICS_ENABLED="true"
//	LOOM_OTEL_ENABLED="true"
//	LOOM_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// # Related Packages
//
//   - pkg/cache: Uses Redis configuration
//   - pkg/observability: Uses observability configuration
package config
