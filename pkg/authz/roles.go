package authz

// rolePermissions is the authoritative role-permission table. Each role's set
// is authored explicitly rather than derived from privilege ordering, because
// the sets are not hierarchical bit-sets: workspace deletion belongs to owner
// alone, while admin otherwise carries the full management set.
var rolePermissions = map[WorkspaceRole][]Permission{
	RoleOwner: {
		PermWorkspaceRead,
		PermWorkspaceUpdate,
		PermWorkspaceDelete,
		PermWorkspaceInvite,
		PermWorkspaceManageMembers,
		PermCanvasCreate, PermCanvasRead, PermCanvasUpdate, PermCanvasDelete,
		PermCardCreate, PermCardRead, PermCardUpdate, PermCardDelete,
		PermConnectionCreate, PermConnectionRead, PermConnectionUpdate, PermConnectionDelete,
	},
	RoleAdmin: {
		PermWorkspaceRead,
		PermWorkspaceUpdate,
		PermWorkspaceInvite,
		PermWorkspaceManageMembers,
		PermCanvasCreate, PermCanvasRead, PermCanvasUpdate, PermCanvasDelete,
		PermCardCreate, PermCardRead, PermCardUpdate, PermCardDelete,
		PermConnectionCreate, PermConnectionRead, PermConnectionUpdate, PermConnectionDelete,
	},
	RoleMember: {
		PermWorkspaceRead,
		PermCanvasCreate, PermCanvasRead, PermCanvasUpdate, PermCanvasDelete,
		PermCardCreate, PermCardRead, PermCardUpdate, PermCardDelete,
		PermConnectionCreate, PermConnectionRead, PermConnectionUpdate, PermConnectionDelete,
	},
	RoleViewer: {
		PermWorkspaceRead,
		PermCanvasRead,
		PermCardRead,
		PermConnectionRead,
	},
}

// PermissionsForRole returns the permission set granted by a workspace role.
// The returned slice is a copy; callers may modify it freely. Unknown roles
// resolve to an empty set rather than an error.
func PermissionsForRole(role WorkspaceRole) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return []Permission{}
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// EffectivePermissions computes a member's effective permission set: the
// union of their role's set and any custom permissions stored on the
// membership row. Custom permissions add access beyond the role; they never
// remove role-granted access. Returns an empty set for a nil or inactive
// member.
func EffectivePermissions(member *WorkspaceMember) []Permission {
	if member == nil || !member.IsActive {
		return []Permission{}
	}

	perms := PermissionsForRole(member.Role)
	seen := make(map[Permission]struct{}, len(perms)+len(member.Permissions))
	for _, p := range perms {
		seen[p] = struct{}{}
	}
	for _, p := range member.Permissions {
		if !IsValidPermission(string(p)) {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	return perms
}

// HasPermission reports whether the member's effective permission set
// contains perm.
func HasPermission(member *WorkspaceMember, perm Permission) bool {
	if member == nil || !member.IsActive {
		return false
	}
	for _, p := range rolePermissions[member.Role] {
		if p == perm {
			return true
		}
	}
	for _, p := range member.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
