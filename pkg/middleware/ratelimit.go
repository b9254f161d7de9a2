package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/loomhq/loom/pkg/httputil"
)

// RateLimitConfig configures a fixed-window rate limit
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultRateLimitConfig limits anonymous callers
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 60,
		WindowDuration:    time.Minute,
	}
}

// PerUserRateLimitConfig limits authenticated callers
func PerUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
	}
}

// RateLimiter implements fixed-window rate limiting over Redis so the
// limits hold across every serving instance.
type RateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewRateLimiter creates a Redis-backed rate limiter
func NewRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks whether the keyed caller is under its window limit
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on Redis loss; throttling is protection, not policy.
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Reset clears the window for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// RateLimitMiddleware throttles requests with two separate windows: a
// generous per-user window for authenticated routes and a tight per-IP
// window for public ones. Handler must run after authentication so the
// identity is present; AnonymousHandler belongs on public routes.
type RateLimitMiddleware struct {
	userLimiter *RateLimiter
	anonLimiter *RateLimiter
}

// NewRateLimitMiddleware creates the rate limiting middleware
func NewRateLimitMiddleware(redisClient *redis.Client) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		userLimiter: NewRateLimiter(redisClient, PerUserRateLimitConfig(), "ratelimit:user"),
		anonLimiter: NewRateLimiter(redisClient, DefaultRateLimitConfig(), "ratelimit:anon"),
	}
}

// Handler throttles by authenticated user ID. A request that somehow
// reaches it without an identity falls back to the anonymous IP window.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ident := GetIdentity(r); ident != nil {
			m.throttle(w, r, next, m.userLimiter, "user:"+ident.UserID)
			return
		}
		m.throttle(w, r, next, m.anonLimiter, "ip:"+clientIP(r))
	})
}

// AnonymousHandler throttles by client IP
func (m *RateLimitMiddleware) AnonymousHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.throttle(w, r, next, m.anonLimiter, "ip:"+clientIP(r))
	})
}

func (m *RateLimitMiddleware) throttle(w http.ResponseWriter, r *http.Request, next http.Handler, limiter *RateLimiter, key string) {
	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		next.ServeHTTP(w, r)
		return
	}
	if !allowed {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", limiter.config.WindowDuration.Seconds()))
		httputil.WriteTooManyRequests(w, "rate limit exceeded")
		return
	}
	next.ServeHTTP(w, r)
}

// clientIP extracts the client IP, honoring proxy headers. X-Forwarded-For
// is a comma-joined chain behind stacked proxies; only the first hop counts,
// otherwise a caller could rotate keys by appending addresses.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
