package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomhq/loom/pkg/observability"
)

// MembershipStore reads workspace-membership state from the relational
// store. Implementations apply row-level filtering for is_active; an absent
// or inactive membership is reported as (nil, nil), not an error.
type MembershipStore interface {
	FindActiveMembership(ctx context.Context, userID, workspaceID string) (*WorkspaceMember, error)
	FindMembershipsForUser(ctx context.Context, userID string) ([]*WorkspaceMember, error)
	FindOwnedWorkspaceIDs(ctx context.Context, userID string) ([]string, error)
}

// SharedCache is the durable, TTL-based cache shared across processes. It is
// best-effort: a miss or failure is always resolvable by falling back to the
// store, and it must never be treated as a source of truth.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// SecurityLogger records authorization outcomes for forensic review.
// Fire-and-forget: implementations must never let a logging failure affect
// an authorization decision.
type SecurityLogger interface {
	AuthorizationSuccess(ctx context.Context, userID, resource, action string, fields map[string]interface{})
	AuthorizationFailure(ctx context.Context, userID, resource, action string, fields map[string]interface{})
	Error(ctx context.Context, message string, fields map[string]interface{})
}

// ServiceConfig holds resolution TTLs. Short TTLs bound staleness after a
// role change or member removal that this engine never observes directly.
type ServiceConfig struct {
	MemberTTL      time.Duration
	PermissionsTTL time.Duration
	ContextTTL     time.Duration
}

// DefaultServiceConfig returns the default cache TTLs
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MemberTTL:      30 * time.Second,
		PermissionsTTL: 60 * time.Second,
		ContextTTL:     60 * time.Second,
	}
}

// Service is the authoritative permission-resolution engine for one user
// against one or all workspaces. It layers the shared cache over the
// membership store and applies the role-permission table plus per-member
// custom permissions.
//
// All methods are safe for concurrent use. Two concurrent cache misses for
// the same key may both read the store and both write the cache; the write
// is idempotent and the TTL bounds any divergence, so no per-key
// serialization is attempted.
type Service struct {
	store    MembershipStore
	cache    SharedCache
	security SecurityLogger
	logger   *observability.Logger
	metrics  *observability.Metrics
	cfg      ServiceConfig
}

// NewService creates a permission-resolution service. security, logger, and
// metrics may be nil; missing collaborators degrade to no-ops.
func NewService(store MembershipStore, cache SharedCache, security SecurityLogger, logger *observability.Logger, metrics *observability.Metrics, cfg ServiceConfig) *Service {
	if cfg.MemberTTL <= 0 {
		cfg.MemberTTL = DefaultServiceConfig().MemberTTL
	}
	if cfg.PermissionsTTL <= 0 {
		cfg.PermissionsTTL = DefaultServiceConfig().PermissionsTTL
	}
	if cfg.ContextTTL <= 0 {
		cfg.ContextTTL = DefaultServiceConfig().ContextTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:    store,
		cache:    cache,
		security: security,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
	}
}

func memberKey(workspaceID, userID string) string {
	return fmt.Sprintf("member:%s:%s", workspaceID, userID)
}

func permissionsKey(userID, workspaceID string) string {
	return fmt.Sprintf("permissions:%s:%s", userID, workspaceID)
}

func contextKey(userID string) string {
	return fmt.Sprintf("context:%s", userID)
}

// memberEnvelope wraps a membership lookup result so that "not a member" is
// cacheable as an explicit negative entry.
type memberEnvelope struct {
	Member *WorkspaceMember `json:"member"`
}

// GetWorkspaceMember resolves the active membership of userID in
// workspaceID. Returns (nil, nil) when the user is not an active member or
// when either identifier is malformed. Negative results are cached with the
// same TTL as positive ones so repeated probes do not hammer the store.
func (s *Service) GetWorkspaceMember(ctx context.Context, userID, workspaceID string) (*WorkspaceMember, error) {
	if !IsValidUserID(userID) || !IsValidWorkspaceID(workspaceID) {
		return nil, nil
	}
	defer s.observeResolution("member", time.Now())

	key := memberKey(workspaceID, userID)
	var env memberEnvelope
	if s.cacheGet(ctx, key, &env) {
		return env.Member, nil
	}

	member, err := s.store.FindActiveMembership(ctx, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("membership lookup failed: %w", err)
	}

	s.cacheSet(ctx, key, memberEnvelope{Member: member}, s.cfg.MemberTTL)
	return member, nil
}

// GetUserPermissionsInWorkspace returns the user's effective permission set
// in the workspace. Not-a-member resolves to an empty set, never an error;
// transport failures are logged and fail closed to an empty set.
func (s *Service) GetUserPermissionsInWorkspace(ctx context.Context, userID, workspaceID string) []Permission {
	perms, err := s.resolvePermissions(ctx, userID, workspaceID)
	if err != nil {
		s.failClosed(ctx, "resolve workspace permissions", userID, workspaceID, err)
		return []Permission{}
	}
	return perms
}

// resolvePermissions is the error-returning resolution path behind the
// fail-closed public readers.
func (s *Service) resolvePermissions(ctx context.Context, userID, workspaceID string) ([]Permission, error) {
	if !IsValidUserID(userID) || !IsValidWorkspaceID(workspaceID) {
		return []Permission{}, nil
	}
	defer s.observeResolution("permissions", time.Now())

	key := permissionsKey(userID, workspaceID)
	var cached []Permission
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	member, err := s.GetWorkspaceMember(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}

	perms := EffectivePermissions(member)
	s.cacheSet(ctx, key, perms, s.cfg.PermissionsTTL)
	return perms, nil
}

// GetUserWorkspaceRole returns the user's role in the workspace. The second
// return is false when the user is not an active member or resolution
// failed.
func (s *Service) GetUserWorkspaceRole(ctx context.Context, userID, workspaceID string) (WorkspaceRole, bool) {
	member, err := s.GetWorkspaceMember(ctx, userID, workspaceID)
	if err != nil {
		s.failClosed(ctx, "resolve workspace role", userID, workspaceID, err)
		return "", false
	}
	if member == nil {
		return "", false
	}
	return member.Role, true
}

// HasPermissionInWorkspace reports whether the user holds perm in the
// workspace. Malformed input returns false without any cache or store
// access. Transport failures fail closed to false.
func (s *Service) HasPermissionInWorkspace(ctx context.Context, userID, workspaceID string, perm Permission) bool {
	if !IsValidUserID(userID) || !IsValidWorkspaceID(workspaceID) || !IsValidPermission(string(perm)) {
		s.countDecision("invalid")
		return false
	}

	perms, err := s.resolvePermissions(ctx, userID, workspaceID)
	if err != nil {
		s.failClosed(ctx, "permission check", userID, workspaceID, err)
		s.countDecision("error")
		return false
	}

	for _, p := range perms {
		if p == perm {
			s.countDecision("allowed")
			return true
		}
	}
	s.countDecision("denied")
	return false
}

// GetUserPermissionsForContext builds the user's full permission map across
// every workspace where they are an active member or the owner. Owned
// workspaces receive the full owner set even without an explicit membership
// row; an explicit membership contributes its role set plus custom grants.
// Transport failures fail closed to an empty context.
func (s *Service) GetUserPermissionsForContext(ctx context.Context, userID string) PermissionContext {
	pc, err := s.resolveContext(ctx, userID)
	if err != nil {
		s.failClosed(ctx, "resolve permission context", userID, "", err)
		return PermissionContext{}
	}
	return pc
}

func (s *Service) resolveContext(ctx context.Context, userID string) (PermissionContext, error) {
	if !IsValidUserID(userID) {
		return PermissionContext{}, nil
	}

	defer s.observeResolution("context", time.Now())

	key := contextKey(userID)
	var cached PermissionContext
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	var (
		memberships []*WorkspaceMember
		ownedIDs    []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		memberships, err = s.store.FindMembershipsForUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("membership scan failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ownedIDs, err = s.store.FindOwnedWorkspaceIDs(gctx, userID)
		if err != nil {
			return fmt.Errorf("owned workspace scan failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pc := make(PermissionContext, len(memberships)+len(ownedIDs))
	for _, id := range ownedIDs {
		pc[id] = PermissionsForRole(RoleOwner)
	}
	// Explicit memberships take precedence over the implicit owner grant.
	for _, m := range memberships {
		if m == nil || !m.IsActive {
			continue
		}
		pc[m.WorkspaceID] = EffectivePermissions(m)
	}

	s.cacheSet(ctx, key, pc, s.cfg.ContextTTL)
	return pc, nil
}

// Invalidate drops every cache key derived from the (user, workspace) pair:
// the membership entry, the per-workspace permission set, and the user's
// permission context. Called by membership-change flows after a role update
// or removal.
func (s *Service) Invalidate(ctx context.Context, userID, workspaceID string) error {
	if !IsValidUserID(userID) || !IsValidWorkspaceID(workspaceID) {
		return ErrInvalidRequest
	}
	if s.cache == nil {
		return nil
	}
	err := s.cache.Delete(ctx,
		memberKey(workspaceID, userID),
		permissionsKey(userID, workspaceID),
		contextKey(userID),
	)
	if err != nil {
		return fmt.Errorf("cache invalidation failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.InvalidationsTotal.Inc()
	}
	return nil
}

// cacheGet reads and decodes a shared-cache entry. Any transport or decode
// failure is treated as a miss; a decode failure additionally deletes the
// corrupt entry.
func (s *Service) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("shared cache read failed")
		s.countCache("shared", false)
		return false
	}
	if !ok {
		s.countCache("shared", false)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("corrupt cache entry, deleting")
		_ = s.cache.Delete(ctx, key)
		s.countCache("shared", false)
		return false
	}
	s.countCache("shared", true)
	return true
}

// cacheSet writes a shared-cache entry best-effort. A write failure is
// logged and never fails the overall operation.
func (s *Service) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("cache entry marshal failed")
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("shared cache write failed")
	}
}

// failClosed records a read-path transport error that was absorbed into a
// deny/empty result. Advisory readers answer a question; they do not perform
// state changes, so infrastructure hiccups degrade to "nothing is permitted"
// instead of crashing the request pipeline.
func (s *Service) failClosed(ctx context.Context, op, userID, workspaceID string, err error) {
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"operation":    op,
		"user_id":      userID,
		"workspace_id": workspaceID,
	}).Error("authorization read failed, denying")
	if s.security != nil {
		s.security.Error(ctx, "authorization resolution error", map[string]interface{}{
			"operation":    op,
			"user_id":      userID,
			"workspace_id": workspaceID,
			"error":        err.Error(),
		})
	}
}

func (s *Service) countDecision(result string) {
	if s.metrics != nil {
		s.metrics.AuthzDecisionsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeResolution(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.AuthzResolutionDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (s *Service) countCache(tier string, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	} else {
		s.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}
