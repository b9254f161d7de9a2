package identity

import "context"

// Identity is the authenticated caller as established by the identity
// provider. UserID is the provider's stable subject, never an email.
type Identity struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// Verifier validates a bearer credential and returns the identity it
// asserts. Implementations must reject expired or tampered tokens.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}
