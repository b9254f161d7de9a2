package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/httputil"
	"github.com/loomhq/loom/pkg/middleware"
)

// AuthzHandlers serves permission-resolution queries over HTTP. Every
// route assumes AuthMiddleware and AuthzMiddleware have already run, so a
// request-scoped helper is available on the context.
type AuthzHandlers struct {
	svc *authz.Service
}

// NewAuthzHandlers creates the authorization API handlers
func NewAuthzHandlers(svc *authz.Service) *AuthzHandlers {
	return &AuthzHandlers{svc: svc}
}

// RegisterRoutes registers the authorization endpoints
func (h *AuthzHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/me/permissions", h.GetMyPermissions).Methods("GET")
	router.HandleFunc("/v1/me/permissions/context", h.GetMyPermissionContext).Methods("GET")
	router.HandleFunc("/v1/workspaces/{workspaceID}/permissions", h.GetWorkspacePermissions).Methods("GET")
	router.HandleFunc("/v1/workspaces/{workspaceID}/role", h.GetWorkspaceRole).Methods("GET")
	router.HandleFunc("/v1/users/{userID}/permissions/context", h.GetUserPermissionContext).Methods("GET")
	router.HandleFunc("/v1/authz/check", h.CheckPermission).Methods("POST")
	router.HandleFunc("/v1/authz/invalidate", h.InvalidatePermissions).Methods("POST")
	router.HandleFunc("/v1/authz/cache/stats", h.GetCacheStats).Methods("GET")
}

// PermissionsResponse lists a flat permission set
type PermissionsResponse struct {
	UserID      string             `json:"user_id"`
	Permissions []authz.Permission `json:"permissions"`
}

// WorkspacePermissionsResponse lists a user's permissions within one workspace
type WorkspacePermissionsResponse struct {
	UserID      string             `json:"user_id"`
	WorkspaceID string             `json:"workspace_id"`
	Permissions []authz.Permission `json:"permissions"`
}

// PermissionContextResponse maps workspace IDs to permission lists
type PermissionContextResponse struct {
	UserID  string                  `json:"user_id"`
	Context authz.PermissionContext `json:"context"`
}

// WorkspaceRoleResponse reports a user's role in a workspace
type WorkspaceRoleResponse struct {
	UserID      string              `json:"user_id"`
	WorkspaceID string              `json:"workspace_id"`
	Role        authz.WorkspaceRole `json:"role,omitempty"`
	Member      bool                `json:"member"`
}

// CheckPermissionRequest asks whether the caller holds a permission. An
// empty WorkspaceID checks the caller's global context instead.
type CheckPermissionRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	Permission  string `json:"permission"`
}

// CheckPermissionResponse reports a single permission decision
type CheckPermissionResponse struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Permission  string `json:"permission"`
	Allowed     bool   `json:"allowed"`
}

// InvalidateRequest names the (user, workspace) pair whose cached
// authorization state should be dropped.
type InvalidateRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

// helperOrError pulls the request-scoped helper from the context. A missing
// helper means the middleware chain is misconfigured or the request is
// unauthenticated.
func helperOrError(w http.ResponseWriter, r *http.Request) (*authz.Helper, bool) {
	helper := middleware.GetHelper(r)
	if helper == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return helper, true
}

// GetMyPermissions returns the caller's permissions flattened across every
// workspace they belong to.
func (h *AuthzHandlers) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, PermissionsResponse{
		UserID:      helper.UserID(),
		Permissions: helper.FlatPermissions(r.Context()),
	}, "failed to encode permissions")
}

// GetMyPermissionContext returns the caller's full per-workspace permission map
func (h *AuthzHandlers) GetMyPermissionContext(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}

	pc := h.svc.GetUserPermissionsForContext(r.Context(), helper.UserID())
	httputil.WriteJSONOrError(w, http.StatusOK, PermissionContextResponse{
		UserID:  helper.UserID(),
		Context: pc,
	}, "failed to encode permission context")
}

// GetWorkspacePermissions returns the caller's effective permissions in one
// workspace. Non-members get an empty list, not an error; the response shape
// never reveals whether the workspace exists.
func (h *AuthzHandlers) GetWorkspacePermissions(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "workspaceID")
	if !ok {
		return
	}
	if !authz.IsValidWorkspaceID(workspaceID) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, WorkspacePermissionsResponse{
		UserID:      helper.UserID(),
		WorkspaceID: workspaceID,
		Permissions: helper.WorkspacePermissions(r.Context(), workspaceID),
	}, "failed to encode permissions")
}

// GetWorkspaceRole returns the caller's role in a workspace, if any
func (h *AuthzHandlers) GetWorkspaceRole(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}
	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "workspaceID")
	if !ok {
		return
	}
	if !authz.IsValidWorkspaceID(workspaceID) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}

	role, isMember := h.svc.GetUserWorkspaceRole(r.Context(), helper.UserID(), workspaceID)
	httputil.WriteJSONOrError(w, http.StatusOK, WorkspaceRoleResponse{
		UserID:      helper.UserID(),
		WorkspaceID: workspaceID,
		Role:        role,
		Member:      isMember,
	}, "failed to encode role")
}

// GetUserPermissionContext returns another user's permission context. Callers
// may always read their own; reading anyone else requires the administrative
// user-management permission.
func (h *AuthzHandlers) GetUserPermissionContext(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	if !authz.IsValidUserID(targetUserID) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}

	if err := helper.RequireUserDataAccess(r.Context(), targetUserID, ""); err != nil {
		writeAuthzError(w, err)
		return
	}

	pc := h.svc.GetUserPermissionsForContext(r.Context(), targetUserID)
	httputil.WriteJSONOrError(w, http.StatusOK, PermissionContextResponse{
		UserID:  targetUserID,
		Context: pc,
	}, "failed to encode permission context")
}

// CheckPermission evaluates one permission question for the caller. The
// decision itself is the payload, so holding or lacking the permission is
// always a 200; only malformed input is an error.
func (h *AuthzHandlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}

	var req CheckPermissionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !authz.IsValidPermission(req.Permission) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}
	if req.WorkspaceID != "" && !authz.IsValidWorkspaceID(req.WorkspaceID) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}

	var allowed bool
	if req.WorkspaceID == "" {
		allowed = helper.HasGlobalPermission(r.Context(), authz.Permission(req.Permission))
	} else {
		allowed = helper.HasWorkspacePermission(r.Context(), req.WorkspaceID, authz.Permission(req.Permission))
	}

	httputil.WriteJSONOrError(w, http.StatusOK, CheckPermissionResponse{
		UserID:      helper.UserID(),
		WorkspaceID: req.WorkspaceID,
		Permission:  req.Permission,
		Allowed:     allowed,
	}, "failed to encode decision")
}

// InvalidatePermissions drops every cached authorization entry for a (user,
// workspace) pair. Membership-change flows call this after a role update or
// removal; it requires the administrative user-management permission.
func (h *AuthzHandlers) InvalidatePermissions(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}

	if err := helper.RequireGlobalPermission(r.Context(), authz.PermUserManagement, ""); err != nil {
		writeAuthzError(w, err)
		return
	}

	var req InvalidateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !authz.IsValidUserID(req.UserID) || !authz.IsValidWorkspaceID(req.WorkspaceID) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}

	if err := h.svc.Invalidate(r.Context(), req.UserID, req.WorkspaceID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// GetCacheStats reports process-wide memo-cache counters plus this request's
// helper counters. Diagnostic only; requires user management.
func (h *AuthzHandlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	helper, ok := helperOrError(w, r)
	if !ok {
		return
	}
	if err := helper.RequireGlobalPermission(r.Context(), authz.PermUserManagement, ""); err != nil {
		writeAuthzError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{
		"process": authz.PermissionCacheStats(),
		"request": helper.CacheStats(),
	}, "failed to encode cache stats")
}

// writeAuthzError maps authorization errors onto HTTP statuses: malformed
// input is a 400, a denial is a 403 carrying its generic message.
func writeAuthzError(w http.ResponseWriter, err error) {
	if errors.Is(err, authz.ErrInvalidRequest) {
		httputil.WriteBadRequest(w, authz.ErrInvalidRequest.Error())
		return
	}
	var ae *authz.AuthorizationError
	if errors.As(err, &ae) {
		httputil.WriteForbidden(w, ae.Message)
		return
	}
	httputil.WriteForbidden(w, authz.MsgInsufficientPermissions)
}
