package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/loomhq/loom/pkg/audit"
	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/cache"
	"github.com/loomhq/loom/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// PostgreSQL configuration
	Postgres PostgresConfig

	// Redis configuration
	Redis cache.Config

	// Authorization configuration
	Authz AuthzConfig

	// Identity (OIDC) configuration
	Identity IdentityConfig

	// Audit configuration
	Audit AuditConfig

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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthzConfig holds permission-resolution settings
type AuthzConfig struct {
	// Shared cache TTLs
	MemberTTL      time.Duration
	PermissionsTTL time.Duration
	ContextTTL     time.Duration

	// L1CacheSize bounds the in-process cache tier; zero disables it
	L1CacheSize int
}

// IdentityConfig holds OIDC provider settings
type IdentityConfig struct {
	Enabled      bool
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// AuditConfig holds security-event logging settings
type AuditConfig struct {
	Enabled       bool
	RetentionDays int
	SweepSchedule string
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
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Postgres:      loadPostgresConfig(),
		Redis:         loadRedisConfig(),
		Authz:         loadAuthzConfig(),
		Identity:      loadIdentityConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LOOM_HOST", "0.0.0.0"),
		Port:            getEnv("LOOM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("LOOM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LOOM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LOOM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LOOM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("LOOM_HEALTH_PORT", "9090"),
	}
}

func loadPostgresConfig() PostgresConfig {
	return PostgresConfig{
		URL:             getEnv("LOOM_POSTGRES_URL", "postgres://localhost/loom?sslmode=disable"),
		MaxOpenConns:    getEnvInt("LOOM_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("LOOM_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("LOOM_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

func loadRedisConfig() cache.Config {
	return cache.Config{
		URL:        getEnv("LOOM_REDIS_URL", "redis://localhost:6379"),
		Password:   getEnv("LOOM_REDIS_PASSWORD", ""),
		DB:         getEnvInt("LOOM_REDIS_DB", 0),
		MaxRetries: getEnvInt("LOOM_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("LOOM_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthzConfig() AuthzConfig {
	defaults := authz.DefaultServiceConfig()
	return AuthzConfig{
		MemberTTL:      getEnvDuration("LOOM_AUTHZ_MEMBER_TTL", defaults.MemberTTL),
		PermissionsTTL: getEnvDuration("LOOM_AUTHZ_PERMISSIONS_TTL", defaults.PermissionsTTL),
		ContextTTL:     getEnvDuration("LOOM_AUTHZ_CONTEXT_TTL", defaults.ContextTTL),
		L1CacheSize:    getEnvInt("LOOM_AUTHZ_L1_CACHE_SIZE", 4096),
	}
}

func loadIdentityConfig() IdentityConfig {
	scopes := []string{"openid", "profile", "email"}
	if raw := getEnv("LOOM_OIDC_SCOPES", ""); raw != "" {
		scopes = strings.Split(raw, ",")
	}
	return IdentityConfig{
		Enabled:      getEnvBool("LOOM_OIDC_ENABLED", false),
		IssuerURL:    getEnv("LOOM_OIDC_ISSUER_URL", ""),
		ClientID:     getEnv("LOOM_OIDC_CLIENT_ID", ""),
		ClientSecret: getEnv("LOOM_OIDC_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("LOOM_OIDC_REDIRECT_URL", ""),
		Scopes:       scopes,
	}
}

func loadAuditConfig() AuditConfig {
	policy := audit.DefaultRetentionPolicy()
	return AuditConfig{
		Enabled:       getEnvBool("LOOM_AUDIT_ENABLED", true),
		RetentionDays: getEnvInt("LOOM_AUDIT_RETENTION_DAYS", policy.RetentionDays),
		SweepSchedule: getEnv("LOOM_AUDIT_SWEEP_SCHEDULE", policy.SweepSchedule),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(strings.ToLower(getEnv("LOOM_LOG_LEVEL", "info"))),
		MetricsEnabled:     getEnvBool("LOOM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("LOOM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("LOOM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("LOOM_OTEL_SERVICE_NAME", "loomd"),
		OTelServiceVersion: getEnv("LOOM_OTEL_SERVICE_VERSION", observability.Version),
		OTelInsecure:       getEnvBool("LOOM_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Authz.MemberTTL <= 0 || c.Authz.PermissionsTTL <= 0 || c.Authz.ContextTTL <= 0 {
		return fmt.Errorf("authorization cache TTLs must be positive")
	}
	if c.Authz.L1CacheSize < 0 {
		return fmt.Errorf("L1 cache size must not be negative")
	}

	if c.Identity.Enabled {
		if c.Identity.IssuerURL == "" {
			return fmt.Errorf("OIDC issuer URL is required when OIDC is enabled")
		}
		if c.Identity.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}

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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
