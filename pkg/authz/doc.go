// Package authz provides workspace-scoped authorization and permission
// resolution for the Loom knowledge-workspace backend.
//
// # Overview
//
// This package decides, for a given user and workspace, which actions are
// allowed, and aggregates that decision across all of a user's workspaces
// for global checks. It sits on the hot path of every protected request, so
// resolution is layered over two cache tiers with different lifetimes:
//
//  1. Shared cache: a durable, TTL-based key/value cache (Redis-backed in
//     production, see pkg/cache) that survives across requests. Entries are
//     written best-effort and bounded by short TTLs so a role change or
//     removal is observed within tens of seconds.
//  2. Request memo: each Helper carries a private memo map that lives for
//     one logical request and is discarded with it, so a request resolving
//     many fields never asks the same question twice.
//
// # Components
//
//   - WorkspaceRole / Permission: the closed role set (owner, admin, member,
//     viewer) and "resource:action" permission strings.
//   - PermissionsForRole / EffectivePermissions: the static role-permission
//     table plus additive per-member custom grants.
//   - Service: the resolution engine combining the membership store, the
//     shared cache, and the role table.
//   - Helper: the request-scoped facade with memoization, assertion-style
//     Require* operations, and per-instance statistics.
//
// # Failure semantics
//
// Read paths fail closed: a store or cache transport error during an
// advisory read resolves to "no permission" (false / empty), is logged, and
// never propagates to the caller. Denials from the Require* family are
// errors by design so security-critical branches cannot ignore them, and
// they carry a generic message that does not leak membership structure.
//
// # Usage
//
//	svc := authz.NewService(store, cache, securityLog, logger, metrics, authz.DefaultServiceConfig())
//	helper, err := authz.NewHelper(identity.UserID, svc)
//	if err != nil {
//		// transport bug: request reached authorization unauthenticated
//	}
//	if err := helper.RequireWorkspacePermission(ctx, wsID, authz.PermCardCreate, ""); err != nil {
//		// generic denial, safe to surface
//	}
package authz
