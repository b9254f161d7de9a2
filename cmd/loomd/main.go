// Command loomd runs the loom authorization service: the HTTP API backed by
// PostgreSQL membership state, Redis caching, security-event auditing, and
// the usual health/metrics sidecar endpoints.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loomhq/loom/pkg/api"
	"github.com/loomhq/loom/pkg/audit"
	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/cache"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/identity"
	"github.com/loomhq/loom/pkg/observability"
	"github.com/loomhq/loom/pkg/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "loomd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", observability.Version).Info("starting loomd")

	ctx := context.Background()

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("opentelemetry init failed: %w", err)
		}
	}

	db, err := openDatabase(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis is a performance layer, not a dependency: a failed connection
	// logs a warning and the service runs against the store alone.
	var (
		redisCache  *cache.RedisCache
		sharedCache authz.SharedCache
	)
	redisCache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, running without shared cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
		if cfg.Authz.L1CacheSize > 0 {
			tiered, err := cache.NewTieredCache(redisCache, cfg.Authz.L1CacheSize)
			if err != nil {
				return fmt.Errorf("l1 cache init failed: %w", err)
			}
			sharedCache = tiered
		} else {
			sharedCache = redisCache
		}
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var (
		security audit.Logger
		sweeper  *audit.RetentionSweeper
	)
	if cfg.Audit.Enabled {
		dbLogger, err := audit.NewDBLogger(db, logger)
		if err != nil {
			return fmt.Errorf("audit logger init failed: %w", err)
		}
		if metrics != nil {
			dbLogger.WithMetrics(metrics)
		}
		security = dbLogger

		sweeper, err = audit.NewRetentionSweeper(db, audit.RetentionPolicy{
			RetentionDays: cfg.Audit.RetentionDays,
			SweepSchedule: cfg.Audit.SweepSchedule,
		}, logger)
		if err != nil {
			return fmt.Errorf("retention sweeper init failed: %w", err)
		}
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("retention sweeper start failed: %w", err)
		}
	} else {
		security = &audit.NoopLogger{}
	}

	store := workspace.NewStore(db)
	if metrics != nil {
		store.WithMetrics(metrics)
		go pollConnectionGauges(metrics, db, redisCache)
	}
	authzSvc := authz.NewService(store, sharedCache, security, logger, metrics, authz.ServiceConfig{
		MemberTTL:      cfg.Authz.MemberTTL,
		PermissionsTTL: cfg.Authz.PermissionsTTL,
		ContextTTL:     cfg.Authz.ContextTTL,
	})

	var (
		verifier identity.Verifier
		oidc     *identity.OIDCProvider
	)
	if cfg.Identity.Enabled {
		oidc, err = identity.NewOIDCProvider(ctx, identity.OIDCConfig{
			IssuerURL:    cfg.Identity.IssuerURL,
			ClientID:     cfg.Identity.ClientID,
			ClientSecret: cfg.Identity.ClientSecret,
			RedirectURL:  cfg.Identity.RedirectURL,
			Scopes:       cfg.Identity.Scopes,
		})
		if err != nil {
			return fmt.Errorf("oidc init failed: %w", err)
		}
		verifier = oidc
	} else {
		logger.Warn("OIDC disabled, using insecure token verifier (development only)")
		verifier = identity.InsecureVerifier{}
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.Server.Host + ":" + cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.IdleTimeout = cfg.Server.IdleTimeout
	serverCfg.TracingEnabled = cfg.Observability.OTelEnabled

	deps := api.Dependencies{
		Logger:  logger,
		Metrics: metrics,
		Authz:   authzSvc,
		Verify:  verifier,
		OIDC:    oidc,
	}
	if redisCache != nil {
		deps.Redis = redisCache.Client()
	}

	server, err := api.NewServer(serverCfg, deps)
	if err != nil {
		return err
	}

	healthServer := startHealthServer(cfg, db, redisCache, registry, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("api server exited")
		}
	}()

	sm := observability.NewShutdownManager(logger, server.HTTPServer(), cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if sweeper != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		})
	}
	if otelProviders != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	return sm.WaitForShutdown()
}

// openDatabase connects to PostgreSQL, applies pool settings, and runs the
// schema migrations.
func openDatabase(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("database open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := workspace.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return db, nil
}

// pollConnectionGauges samples connection-pool gauges on a fixed interval
func pollConnectionGauges(metrics *observability.Metrics, db *sql.DB, redisCache *cache.RedisCache) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := db.Stats()
		metrics.DBConnectionsActive.Set(float64(stats.InUse))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		if redisCache != nil {
			metrics.RedisConnectionsActive.Set(float64(redisCache.PoolStats().TotalConns))
		}
	}
}

// startHealthServer serves liveness/readiness probes and Prometheus metrics
// on the dedicated health port.
func startHealthServer(cfg *config.Config, db *sql.DB, redisCache *cache.RedisCache, registry *prometheus.Registry, logger *observability.Logger) *http.Server {
	healthMux := http.NewServeMux()

	var checker *observability.HealthChecker
	if redisCache != nil {
		checker = observability.NewHealthChecker(db, redisCache.Client())
	} else {
		checker = observability.NewHealthChecker(db, nil)
	}
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("addr", srv.Addr).Info("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server exited")
		}
	}()
	return srv
}
