// Package middleware provides the HTTP request pipeline: request ID
// tagging, panic recovery, bearer-token authentication, request-scoped
// permission helpers, permission gates for routes, and Redis-backed rate
// limiting.
//
// The intended chain, outermost first:
//
//	RequestIDMiddleware
//	RecoveryMiddleware
//	observability.HTTPMetricsMiddleware
//	RateLimitMiddleware
//	AuthMiddleware
//	AuthzMiddleware
//	per-route RequireWorkspacePermission / RequireGlobalPermission
//
// AuthzMiddleware creates one permission helper per request and shares it
// through the context; every gate and handler in that request reuses the
// same memoized lookups.
package middleware
