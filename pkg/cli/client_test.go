package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	return &Client{
		BaseURL: ts.URL,
		Token:   "tok-1",
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}, ts
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	client, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	require.NoError(t, client.Get("/v1/me/permissions", &map[string]interface{}{}))
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestClientDecodesResponse(t *testing.T) {
	client, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"allowed": true})
	}))
	defer ts.Close()

	var resp struct {
		Allowed bool `json:"allowed"`
	}
	require.NoError(t, client.Post("/v1/authz/check", map[string]string{"permission": "card:read"}, &resp))
	assert.True(t, resp.Allowed)
}

func TestClientSurfacesErrorBody(t *testing.T) {
	client, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "Insufficient permissions"})
	}))
	defer ts.Close()

	err := client.Get("/v1/authz/cache/stats", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient permissions")
	assert.Contains(t, err.Error(), "403")
}

func TestClientPostWithNilOutDiscardsBody(t *testing.T) {
	client, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	assert.NoError(t, client.Post("/v1/authz/invalidate", map[string]string{"user_id": "u-1", "workspace_id": "ws-1"}, nil))
}
