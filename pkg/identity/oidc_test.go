package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() OIDCConfig {
	return OIDCConfig{
		IssuerURL:    "https://provider.example.com",
		ClientID:     "test-client-id",
		ClientSecret: "test-secret",
		RedirectURL:  "https://loom.example.com/auth/callback",
		Scopes:       []string{"openid", "profile", "email"},
	}
}

func TestOIDCConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*OIDCConfig)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(c *OIDCConfig) {},
			expectError: false,
		},
		{
			name:        "missing client_id",
			mutate:      func(c *OIDCConfig) { c.ClientID = "" },
			expectError: true,
			errorMsg:    "client_id is required",
		},
		{
			name:        "missing client_secret",
			mutate:      func(c *OIDCConfig) { c.ClientSecret = "" },
			expectError: true,
			errorMsg:    "client_secret is required",
		},
		{
			name:        "missing issuer_url",
			mutate:      func(c *OIDCConfig) { c.IssuerURL = "" },
			expectError: true,
			errorMsg:    "issuer_url is required",
		},
		{
			name:        "missing redirect_url",
			mutate:      func(c *OIDCConfig) { c.RedirectURL = "" },
			expectError: true,
			errorMsg:    "redirect_url is required",
		},
		{
			name:        "missing scopes",
			mutate:      func(c *OIDCConfig) { c.Scopes = nil },
			expectError: true,
			errorMsg:    "at least one scope is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// fakeIssuer serves the minimal discovery document go-oidc needs
func fakeIssuer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/auth",
			"token_endpoint":         server.URL + "/token",
			"jwks_uri":               server.URL + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"keys": []interface{}{}})
	})

	return server
}

func TestNewOIDCProvider_Discovery(t *testing.T) {
	issuer := fakeIssuer(t)

	cfg := validConfig()
	cfg.IssuerURL = issuer.URL

	provider, err := NewOIDCProvider(context.Background(), cfg)
	require.NoError(t, err)

	loginURL := provider.LoginURL("state-123")
	assert.Contains(t, loginURL, issuer.URL+"/auth")
	assert.Contains(t, loginURL, "state=state-123")
	assert.Contains(t, loginURL, "client_id=test-client-id")
}

func TestNewOIDCProvider_RejectsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.ClientID = ""

	_, err := NewOIDCProvider(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OIDC config")
}

func TestNewOIDCProvider_DiscoveryFailure(t *testing.T) {
	cfg := validConfig()
	cfg.IssuerURL = "http://127.0.0.1:1"

	_, err := NewOIDCProvider(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover OIDC provider")
}

func TestHandleCallback_MissingCode(t *testing.T) {
	issuer := fakeIssuer(t)

	cfg := validConfig()
	cfg.IssuerURL = issuer.URL
	provider, err := NewOIDCProvider(context.Background(), cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	_, err = provider.HandleCallback(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing authorization code")
}
