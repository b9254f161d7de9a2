package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/identity"
	"github.com/loomhq/loom/pkg/observability"
)

// fakeVerifier maps token strings to identities
type fakeVerifier struct {
	identities map[string]*identity.Identity
}

func (v *fakeVerifier) Verify(ctx context.Context, rawToken string) (*identity.Identity, error) {
	if ident, ok := v.identities[rawToken]; ok {
		return ident, nil
	}
	return nil, errors.New("unknown token")
}

// fakeMemberStore serves a fixed membership set
type fakeMemberStore struct {
	members map[string]*authz.WorkspaceMember // key "user:workspace"
	owned   map[string][]string
}

func (s *fakeMemberStore) FindActiveMembership(ctx context.Context, userID, workspaceID string) (*authz.WorkspaceMember, error) {
	return s.members[userID+":"+workspaceID], nil
}

func (s *fakeMemberStore) FindMembershipsForUser(ctx context.Context, userID string) ([]*authz.WorkspaceMember, error) {
	var out []*authz.WorkspaceMember
	for _, m := range s.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMemberStore) FindOwnedWorkspaceIDs(ctx context.Context, userID string) ([]string, error) {
	return s.owned[userID], nil
}

func member(id, workspaceID, userID string, role authz.WorkspaceRole, custom ...authz.Permission) *authz.WorkspaceMember {
	return &authz.WorkspaceMember{
		ID:          id,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		Permissions: custom,
		JoinedAt:    time.Now(),
		IsActive:    true,
	}
}

// newTestServer builds a full API server over fake auth and membership
// state: u-member is a member of ws-1, u-viewer a viewer of ws-1, and
// u-admin an admin of ws-1 carrying the user-management grant.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := &fakeMemberStore{
		members: map[string]*authz.WorkspaceMember{
			"u-member:ws-1": member("m-1", "ws-1", "u-member", authz.RoleMember),
			"u-viewer:ws-1": member("m-2", "ws-1", "u-viewer", authz.RoleViewer),
			"u-admin:ws-1":  member("m-3", "ws-1", "u-admin", authz.RoleAdmin, authz.PermUserManagement),
		},
		owned: map[string][]string{
			"u-member": {"ws-owned"},
		},
	}
	verifier := &fakeVerifier{identities: map[string]*identity.Identity{
		"tok-member": {UserID: "u-member"},
		"tok-viewer": {UserID: "u-viewer"},
		"tok-admin":  {UserID: "u-admin"},
	}}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := authz.NewService(store, nil, nil, logger, nil, authz.DefaultServiceConfig())

	srv, err := NewServer(DefaultServerConfig(), Dependencies{
		Logger: logger,
		Authz:  svc,
		Verify: verifier,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.HTTPServer().Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func TestGetMyPermissionsRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doRequest(t, ts, http.MethodGet, "/v1/me/permissions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetMyPermissions(t *testing.T) {
	ts := newTestServer(t)

	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/me/permissions", "tok-member", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got PermissionsResponse
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "u-member", got.UserID)
	assert.Contains(t, got.Permissions, authz.PermCardRead)
	// Owner set flows in from the owned workspace even without a membership row.
	assert.Contains(t, got.Permissions, authz.PermWorkspaceDelete)
	assert.NotContains(t, got.Permissions, authz.PermUserManagement)
}

func TestGetMyPermissionContext(t *testing.T) {
	ts := newTestServer(t)

	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/me/permissions/context", "tok-member", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got PermissionContextResponse
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Contains(t, got.Context, "ws-1")
	assert.Contains(t, got.Context, "ws-owned")
	assert.Contains(t, got.Context["ws-owned"], authz.PermWorkspaceDelete)
	assert.NotContains(t, got.Context["ws-1"], authz.PermWorkspaceDelete)
}

func TestGetWorkspacePermissions(t *testing.T) {
	ts := newTestServer(t)

	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/workspaces/ws-1/permissions", "tok-viewer", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got WorkspacePermissionsResponse
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "ws-1", got.WorkspaceID)
	assert.Contains(t, got.Permissions, authz.PermCardRead)
	assert.NotContains(t, got.Permissions, authz.PermCardCreate)
}

func TestGetWorkspacePermissionsNonMemberEmpty(t *testing.T) {
	ts := newTestServer(t)

	// Unknown workspace and non-membership look identical: 200 with an
	// empty permission list.
	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/workspaces/ws-other/permissions", "tok-viewer", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got WorkspacePermissionsResponse
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Empty(t, got.Permissions)
}

func TestGetWorkspaceRole(t *testing.T) {
	ts := newTestServer(t)

	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/workspaces/ws-1/role", "tok-admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got WorkspaceRoleResponse
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.True(t, got.Member)
	assert.Equal(t, authz.RoleAdmin, got.Role)

	resp, payload = doRequest(t, ts, http.MethodGet, "/v1/workspaces/ws-other/role", "tok-admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = WorkspaceRoleResponse{}
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.False(t, got.Member)
	assert.Empty(t, got.Role)
}

func TestCheckPermission(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name    string
		token   string
		req     CheckPermissionRequest
		allowed bool
	}{
		{"member can create cards", "tok-member", CheckPermissionRequest{WorkspaceID: "ws-1", Permission: "card:create"}, true},
		{"viewer cannot create cards", "tok-viewer", CheckPermissionRequest{WorkspaceID: "ws-1", Permission: "card:create"}, false},
		{"viewer can read cards", "tok-viewer", CheckPermissionRequest{WorkspaceID: "ws-1", Permission: "card:read"}, true},
		{"global check spans workspaces", "tok-member", CheckPermissionRequest{Permission: "workspace:delete"}, true},
		{"global check denies absent grant", "tok-viewer", CheckPermissionRequest{Permission: "workspace:delete"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, payload := doRequest(t, ts, http.MethodPost, "/v1/authz/check", tc.token, tc.req)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var got CheckPermissionResponse
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, tc.allowed, got.Allowed)
		})
	}
}

func TestCheckPermissionRejectsMalformedInput(t *testing.T) {
	ts := newTestServer(t)

	resp, payload := doRequest(t, ts, http.MethodPost, "/v1/authz/check", "tok-member",
		CheckPermissionRequest{WorkspaceID: "ws-1", Permission: "not a permission"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(payload), authz.ErrInvalidRequest.Error())
}

func TestUserPermissionContextAccess(t *testing.T) {
	ts := newTestServer(t)

	// Self-access needs no special grant.
	resp, _ := doRequest(t, ts, http.MethodGet, "/v1/users/u-viewer/permissions/context", "tok-viewer", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Cross-user access requires the user-management grant.
	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/users/u-member/permissions/context", "tok-viewer", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(payload), authz.MsgInsufficientPermissions)

	resp, payload = doRequest(t, ts, http.MethodGet, "/v1/users/u-member/permissions/context", "tok-admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got PermissionContextResponse
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "u-member", got.UserID)
	assert.Contains(t, got.Context, "ws-1")
}

func TestInvalidateRequiresUserManagement(t *testing.T) {
	ts := newTestServer(t)

	req := InvalidateRequest{UserID: "u-member", WorkspaceID: "ws-1"}

	resp, payload := doRequest(t, ts, http.MethodPost, "/v1/authz/invalidate", "tok-member", req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(payload), authz.MsgInsufficientPermissions)

	resp, _ = doRequest(t, ts, http.MethodPost, "/v1/authz/invalidate", "tok-admin", req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestInvalidateRejectsMalformedInput(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doRequest(t, ts, http.MethodPost, "/v1/authz/invalidate", "tok-admin",
		InvalidateRequest{UserID: "", WorkspaceID: "ws-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCacheStatsGated(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doRequest(t, ts, http.MethodGet, "/v1/authz/cache/stats", "tok-viewer", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, payload := doRequest(t, ts, http.MethodGet, "/v1/authz/cache/stats", "tok-admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(payload), "process")
}

func TestServerRejectsMissingDependencies(t *testing.T) {
	_, err := NewServer(DefaultServerConfig(), Dependencies{Verify: &fakeVerifier{}})
	assert.Error(t, err)

	_, err = NewServer(DefaultServerConfig(), Dependencies{
		Authz: authz.NewService(&fakeMemberStore{}, nil, nil, nil, nil, authz.DefaultServiceConfig()),
	})
	assert.Error(t, err)
}
