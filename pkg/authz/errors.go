package authz

import "errors"

// Default denial messages. Deliberately generic: the same error shape is
// returned whether the user is not a member, holds the wrong role, or the
// store was unreachable, so callers cannot enumerate membership by probing.
const (
	MsgInsufficientPermissions = "Insufficient permissions"
	MsgWorkspaceAccessDenied   = "Insufficient permissions for workspace access"
)

// ErrInvalidRequest is returned when a workspace ID or permission string is
// malformed. Distinct from an authorization denial so callers and tests can
// tell "bad request" from "forbidden".
var ErrInvalidRequest = errors.New("Invalid request parameters")

// ErrNoIdentity is returned when a Helper is constructed without a verified
// user identity. This is a programmer-error guard: the transport layer must
// authenticate before the authorization engine is invoked.
var ErrNoIdentity = errors.New("authorization helper requires an authenticated identity")

// ErrNoService is returned when a Helper is constructed without an
// authorization service reference.
var ErrNoService = errors.New("authorization helper requires an authorization service")

// AuthorizationError represents a denied authorization decision. The message
// is generic and safe to surface to end users; the structured fields exist
// for server-side logs only and must never be included in the message.
type AuthorizationError struct {
	Message    string
	Permission Permission
	Resource   string
	Action     string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// NewAuthorizationError builds a denial error for the given permission with
// an optional message override.
func NewAuthorizationError(perm Permission, message string) *AuthorizationError {
	if message == "" {
		message = MsgInsufficientPermissions
	}
	return &AuthorizationError{
		Message:    message,
		Permission: perm,
		Resource:   perm.Resource(),
		Action:     perm.Action(),
	}
}

// IsAuthorizationError reports whether err is an authorization denial
func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
