package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	type checkRequest struct {
		WorkspaceID string `json:"workspace_id"`
		Permission  string `json:"permission"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/v1/authz/check",
			strings.NewReader(`{"workspace_id":"ws-1","permission":"card:read"}`))

		var req checkRequest
		require.NoError(t, ParseJSON(r, &req))
		assert.Equal(t, "ws-1", req.WorkspaceID)
		assert.Equal(t, "card:read", req.Permission)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/v1/authz/check", strings.NewReader(`{"workspace_id":`))

		var req checkRequest
		err := ParseJSON(r, &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})

	t.Run("trailing garbage rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/v1/authz/check",
			strings.NewReader(`{"permission":"card:read"}{"permission":"card:delete"}`))

		var req checkRequest
		require.Error(t, ParseJSON(r, &req))
	})
}

func TestParseJSONOrError(t *testing.T) {
	t.Run("decodes and reports success", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/v1/authz/invalidate", strings.NewReader(`{"user_id":"u-1"}`))

		var req struct {
			UserID string `json:"user_id"`
		}
		ok := ParseJSONOrError(w, r, &req)
		assert.True(t, ok)
		assert.Equal(t, "u-1", req.UserID)
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/v1/authz/invalidate", strings.NewReader(`not json`))

		var req struct{}
		ok := ParseJSONOrError(w, r, &req)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid JSON")
	})
}

func TestParsePathString(t *testing.T) {
	t.Run("present variable", func(t *testing.T) {
		var got string
		router := mux.NewRouter()
		router.HandleFunc("/v1/workspaces/{workspaceID}/role", func(w http.ResponseWriter, r *http.Request) {
			got, _ = ParsePathString(r, "workspaceID")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/workspaces/ws-42/role", nil))
		assert.Equal(t, "ws-42", got)
	})

	t.Run("missing variable errors", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/workspaces", nil)
		_, err := ParsePathString(r, "workspaceID")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workspaceID")
	})
}

func TestParsePathStringOrError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/v1/workspaces", nil)

	_, ok := ParsePathStringOrError(w, r, "workspaceID")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing path parameter")
}
