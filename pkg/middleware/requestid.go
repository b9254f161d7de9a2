package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/contextkeys"
	"github.com/loomhq/loom/pkg/observability"
)

// RequestIDHeader carries the request ID on responses and may supply one
// on inbound requests from trusted proxies.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with a UUID and echoes it back
// in the response headers for log correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		ctx = observability.WithRequestID(ctx, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RecoveryMiddleware converts handler panics into 500 responses instead
// of tearing down the connection.
func RecoveryMiddleware(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer observability.RecoverPanicWithCallback(
				logger.WithField("path", r.URL.Path),
				"http handler",
				func() {
					http.Error(w, "internal server error", http.StatusInternalServerError)
				},
			)
			next.ServeHTTP(w, r)
		})
	}
}
