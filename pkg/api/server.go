package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/httputil"
	"github.com/loomhq/loom/pkg/identity"
	"github.com/loomhq/loom/pkg/middleware"
	"github.com/loomhq/loom/pkg/observability"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	TracingEnabled bool
}

// DefaultServerConfig returns production-ready server settings
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 25 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// Dependencies collects everything the API server needs. Redis and OIDC are
// optional: without Redis the server runs unthrottled, without OIDC the
// login routes are not mounted. Verifier is required.
type Dependencies struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Authz   *authz.Service
	Verify  identity.Verifier
	OIDC    *identity.OIDCProvider
	Redis   *redis.Client
}

// Server is the loom API server: a mux router carrying the standard
// middleware chain with the authorization handlers mounted on it. Login
// routes sit on the public parent router; everything else lives behind
// authentication on a subrouter.
type Server struct {
	cfg        ServerConfig
	router     *mux.Router
	httpServer *http.Server
	logger     *observability.Logger
}

// NewServer assembles the router and middleware chain
func NewServer(cfg ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Authz == nil {
		return nil, fmt.Errorf("authorization service is required")
	}
	if deps.Verify == nil {
		return nil, fmt.Errorf("identity verifier is required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	if deps.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	var rateLimit *middleware.RateLimitMiddleware
	if deps.Redis != nil {
		rateLimit = middleware.NewRateLimitMiddleware(deps.Redis)
	}

	if deps.OIDC != nil {
		public := router.PathPrefix("/v1/auth").Subrouter()
		if rateLimit != nil {
			public.Use(rateLimit.AnonymousHandler)
		}
		NewAuthHandlers(deps.OIDC).RegisterRoutes(public)
	}

	// The per-user limiter sits after authentication so it keys on the
	// verified user instead of the client IP.
	protected := router.PathPrefix("/").Subrouter()
	protected.Use(middleware.NewAuthMiddleware(deps.Verify, false).Handler)
	if rateLimit != nil {
		protected.Use(rateLimit.Handler)
	}
	protected.Use(middleware.NewAuthzMiddleware(deps.Authz).Handler)
	NewAuthzHandlers(deps.Authz).RegisterRoutes(protected)

	var handler http.Handler = router
	handler = httputil.Chain(
		httputil.CORSMiddleware(cfg.AllowedOrigins),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
		httputil.TimeoutMiddleware(cfg.RequestTimeout),
	)(handler)
	if cfg.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "loom-api")
	}

	return &Server{
		cfg:    cfg,
		router: router,
		logger: deps.Logger,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}, nil
}

// Router exposes the underlying router so callers can mount extra routes
// before Start.
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer exposes the configured http.Server for shutdown management
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called; a clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.cfg.Addr).Info("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
