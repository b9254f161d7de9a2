package authz

import "regexp"

// permissionPattern matches "resource:action" where both segments are
// lowercase letters, digits, or underscores. Exactly one colon.
var permissionPattern = regexp.MustCompile(`^[a-z0-9_]+:[a-z0-9_]+$`)

// IsValidWorkspaceID reports whether v is a usable workspace identifier.
// Only non-empty strings qualify. Validation runs before any cache or store
// access so malformed input resolves to denial without I/O.
func IsValidWorkspaceID(v string) bool {
	return v != ""
}

// IsValidUserID reports whether v is a usable user identifier
func IsValidUserID(v string) bool {
	return v != ""
}

// IsValidPermission reports whether v is a well-formed permission string.
// Rejects uppercase, spaces, missing or repeated colons, and empty segments.
func IsValidPermission(v string) bool {
	return permissionPattern.MatchString(v)
}
