package identity

import (
	"context"
	"fmt"
)

// InsecureVerifier treats the bearer token itself as the user ID. It exists
// for local development and integration tests where no OIDC issuer is
// available; never enable it in production.
type InsecureVerifier struct{}

// Verify returns an identity whose user ID is the raw token
func (InsecureVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("empty token")
	}
	return &Identity{UserID: rawToken}, nil
}
