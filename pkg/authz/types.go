package authz

import "time"

// WorkspaceRole represents a workspace-level privilege tier
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "owner"  // Full control, including workspace deletion
	RoleAdmin  WorkspaceRole = "admin"  // Management access, no deletion
	RoleMember WorkspaceRole = "member" // Content read/write
	RoleViewer WorkspaceRole = "viewer" // Read-only access
)

// IsValid reports whether the role is one of the known workspace roles
func (r WorkspaceRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Permission represents one allowed operation, formatted as "resource:action"
type Permission string

const (
	PermWorkspaceRead          Permission = "workspace:read"
	PermWorkspaceUpdate        Permission = "workspace:update"
	PermWorkspaceDelete        Permission = "workspace:delete"
	PermWorkspaceInvite        Permission = "workspace:invite"
	PermWorkspaceManageMembers Permission = "workspace:manage_members"

	PermCanvasCreate Permission = "canvas:create"
	PermCanvasRead   Permission = "canvas:read"
	PermCanvasUpdate Permission = "canvas:update"
	PermCanvasDelete Permission = "canvas:delete"

	PermCardCreate Permission = "card:create"
	PermCardRead   Permission = "card:read"
	PermCardUpdate Permission = "card:update"
	PermCardDelete Permission = "card:delete"

	PermConnectionCreate Permission = "connection:create"
	PermConnectionRead   Permission = "connection:read"
	PermConnectionUpdate Permission = "connection:update"
	PermConnectionDelete Permission = "connection:delete"

	// PermUserManagement gates access to other users' data across workspaces
	PermUserManagement Permission = "admin:user_management"
)

// Resource returns the resource segment of the permission, or "" if malformed
func (p Permission) Resource() string {
	for i := 0; i < len(p); i++ {
		if p[i] == ':' {
			return string(p[:i])
		}
	}
	return ""
}

// Action returns the action segment of the permission, or "" if malformed
func (p Permission) Action() string {
	for i := 0; i < len(p); i++ {
		if p[i] == ':' {
			return string(p[i+1:])
		}
	}
	return ""
}

// WorkspaceMember represents an active membership row joining a user to a
// workspace. Permissions holds custom grants beyond the role's set; they can
// only add access, never remove role-granted access.
type WorkspaceMember struct {
	ID          string        `json:"id"`
	WorkspaceID string        `json:"workspace_id"`
	UserID      string        `json:"user_id"`
	Role        WorkspaceRole `json:"role"`
	Permissions []Permission  `json:"permissions,omitempty"`
	JoinedAt    time.Time     `json:"joined_at"`
	IsActive    bool          `json:"is_active"`
}

// PermissionContext maps workspace ID to the user's permission list in that
// workspace, across every workspace the user belongs to or owns.
type PermissionContext map[string][]Permission

// Has reports whether the context grants perm in the given workspace
func (pc PermissionContext) Has(workspaceID string, perm Permission) bool {
	for _, p := range pc[workspaceID] {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAnywhere reports whether any workspace in the context grants perm
func (pc PermissionContext) HasAnywhere(perm Permission) bool {
	for _, perms := range pc {
		for _, p := range perms {
			if p == perm {
				return true
			}
		}
	}
	return false
}
