package authz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// CacheStats holds memo-cache counters
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Size   int64 `json:"size"`
}

// Process-wide aggregate counters across all helper instances. Kept so that
// servers and tests that reuse process state retain an observability hook
// even though each helper owns its memo privately.
var (
	globalHits   atomic.Int64
	globalMisses atomic.Int64
	globalSets   atomic.Int64
)

// ClearPermissionCache resets the process-wide memo counters. Memo entries
// themselves live on individual helpers and die with their request, so there
// is no shared map to clear.
func ClearPermissionCache() {
	globalHits.Store(0)
	globalMisses.Store(0)
	globalSets.Store(0)
}

// PermissionCacheStats returns the process-wide memo counters
func PermissionCacheStats() CacheStats {
	return CacheStats{
		Hits:   globalHits.Load(),
		Misses: globalMisses.Load(),
		Sets:   globalSets.Load(),
	}
}

// Helper is the request-scoped authorization facade. It binds a verified
// user identity to the resolution service and memoizes every question it
// answers, so one logical request (a GraphQL operation resolving many
// fields, say) never issues the same resolution twice.
//
// Construct one per request and discard it when the request completes. The
// memo cache is instance-scoped and never shared between requests. Safe for
// concurrent use within the request.
type Helper struct {
	userID string
	svc    *Service

	mu    sync.Mutex
	memo  map[string]interface{}
	stats CacheStats
}

// NewHelper creates a helper bound to a verified user identity. Returns an
// error when the service reference is missing or the user ID is invalid;
// both indicate a programming error in the transport layer, not a
// user-facing authorization failure.
func NewHelper(userID string, svc *Service) (*Helper, error) {
	if svc == nil {
		return nil, ErrNoService
	}
	if !IsValidUserID(userID) {
		return nil, ErrNoIdentity
	}
	return &Helper{
		userID: userID,
		svc:    svc,
		memo:   make(map[string]interface{}),
	}, nil
}

// UserID returns the bound user identity
func (h *Helper) UserID() string {
	return h.userID
}

// CacheStats returns this helper's memo counters
func (h *Helper) CacheStats() CacheStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	stats := h.stats
	stats.Size = int64(len(h.memo))
	return stats
}

// memoized runs resolve once per key for the lifetime of the helper
func (h *Helper) memoized(key string, resolve func() interface{}) interface{} {
	h.mu.Lock()
	if v, ok := h.memo[key]; ok {
		h.stats.Hits++
		h.mu.Unlock()
		globalHits.Add(1)
		return v
	}
	h.stats.Misses++
	h.mu.Unlock()
	globalMisses.Add(1)

	v := resolve()

	h.mu.Lock()
	h.memo[key] = v
	h.stats.Sets++
	h.mu.Unlock()
	globalSets.Add(1)
	return v
}

// FlatPermissions returns the user's permissions flattened and deduplicated
// across every workspace in their permission context. Non-permission-shaped
// entries are filtered defensively. Returns an empty slice on any underlying
// failure.
func (h *Helper) FlatPermissions(ctx context.Context) []Permission {
	v := h.memoized("flat", func() interface{} {
		pc := h.svc.GetUserPermissionsForContext(ctx, h.userID)
		seen := make(map[Permission]struct{})
		flat := make([]Permission, 0, len(pc)*8)
		for _, perms := range pc {
			for _, p := range perms {
				if !IsValidPermission(string(p)) {
					continue
				}
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				flat = append(flat, p)
			}
		}
		sort.Slice(flat, func(i, j int) bool { return flat[i] < flat[j] })
		return flat
	})
	return v.([]Permission)
}

// HasGlobalPermission reports whether perm appears in any workspace of the
// user's flattened permission context.
func (h *Helper) HasGlobalPermission(ctx context.Context, perm Permission) bool {
	if !IsValidPermission(string(perm)) {
		return false
	}
	for _, p := range h.FlatPermissions(ctx) {
		if p == perm {
			return true
		}
	}
	return false
}

// HasWorkspacePermission reports whether the user holds perm in the given
// workspace. Malformed input returns false without touching any backend.
func (h *Helper) HasWorkspacePermission(ctx context.Context, workspaceID string, perm Permission) bool {
	if !IsValidWorkspaceID(workspaceID) || !IsValidPermission(string(perm)) {
		return false
	}
	v := h.memoized(fmt.Sprintf("has:%s:%s", workspaceID, perm), func() interface{} {
		return h.svc.HasPermissionInWorkspace(ctx, h.userID, workspaceID, perm)
	})
	allowed, ok := v.(bool)
	return ok && allowed
}

// WorkspacePermissions returns the user's effective permission list in the
// workspace, memoized for the request. Empty on invalid input or failure.
func (h *Helper) WorkspacePermissions(ctx context.Context, workspaceID string) []Permission {
	if !IsValidWorkspaceID(workspaceID) {
		return []Permission{}
	}
	v := h.memoized("perms:"+workspaceID, func() interface{} {
		perms := h.svc.GetUserPermissionsInWorkspace(ctx, h.userID, workspaceID)
		out := make([]Permission, 0, len(perms))
		for _, p := range perms {
			if IsValidPermission(string(p)) {
				out = append(out, p)
			}
		}
		return out
	})
	return v.([]Permission)
}

// RequireGlobalPermission returns an AuthorizationError when the user does
// not hold perm in any workspace. The message never reveals which workspaces
// were checked. Pass message to override the default.
func (h *Helper) RequireGlobalPermission(ctx context.Context, perm Permission, message string) error {
	if !IsValidPermission(string(perm)) {
		return ErrInvalidRequest
	}
	if h.HasGlobalPermission(ctx, perm) {
		h.logDecision(ctx, perm, "", true)
		return nil
	}
	h.logDecision(ctx, perm, "", false)
	return NewAuthorizationError(perm, message)
}

// RequireWorkspacePermission returns ErrInvalidRequest on malformed input
// (distinct from a denial) and an AuthorizationError when the user lacks
// perm in the workspace. A failure to gather audit context after denial is
// already decided is swallowed; the denial still returns.
func (h *Helper) RequireWorkspacePermission(ctx context.Context, workspaceID string, perm Permission, message string) error {
	if !IsValidWorkspaceID(workspaceID) || !IsValidPermission(string(perm)) {
		return ErrInvalidRequest
	}
	if h.HasWorkspacePermission(ctx, workspaceID, perm) {
		h.logDecision(ctx, perm, workspaceID, true)
		return nil
	}

	h.logDecision(ctx, perm, workspaceID, false)
	if message == "" {
		message = MsgWorkspaceAccessDenied
	}
	return NewAuthorizationError(perm, message)
}

// CanAccessUserData reports whether the bound user may read targetUserID's
// data. Self-access is always allowed without any lookup; access to other
// users requires the administrative user-management permission somewhere in
// the global context.
func (h *Helper) CanAccessUserData(ctx context.Context, targetUserID string) bool {
	if targetUserID == h.userID {
		return true
	}
	return h.HasGlobalPermission(ctx, PermUserManagement)
}

// RequireUserDataAccess returns an AuthorizationError when CanAccessUserData
// is false.
func (h *Helper) RequireUserDataAccess(ctx context.Context, targetUserID string, message string) error {
	if h.CanAccessUserData(ctx, targetUserID) {
		return nil
	}
	return NewAuthorizationError(PermUserManagement, message)
}

// logDecision records the outcome with the security logger. For denials the
// user's permission list is fetched only as audit context; if that fetch
// fails the secondary error is dropped and the primary decision stands.
func (h *Helper) logDecision(ctx context.Context, perm Permission, workspaceID string, allowed bool) {
	if h.svc.security == nil {
		return
	}
	fields := map[string]interface{}{}
	if workspaceID != "" {
		fields["workspace_id"] = workspaceID
	}
	if allowed {
		h.svc.security.AuthorizationSuccess(ctx, h.userID, perm.Resource(), perm.Action(), fields)
		return
	}
	// Best-effort audit context; never lets a secondary failure mask the
	// denial.
	func() {
		defer func() { _ = recover() }()
		if workspaceID != "" {
			fields["granted"] = h.WorkspacePermissions(ctx, workspaceID)
		}
	}()
	h.svc.security.AuthorizationFailure(ctx, h.userID, perm.Resource(), perm.Action(), fields)
}
