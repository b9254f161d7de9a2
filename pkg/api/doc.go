// Package api exposes the permission-resolution engine over HTTP: flat and
// per-workspace permission queries for the caller, admin-gated reads of
// other users' permission contexts, one-shot permission checks, and cache
// invalidation for membership-change flows.
//
// Server assembles the full middleware chain (request ID, recovery,
// metrics, rate limiting, authentication, request-scoped authorization
// helper) around the handlers; see pkg/middleware for the chain contract.
package api
