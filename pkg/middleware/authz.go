package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/loomhq/loom/pkg/authz"
	"github.com/loomhq/loom/pkg/contextkeys"
)

// AuthzMiddleware builds a request-scoped permission helper for the
// authenticated caller and shares it through the context, so every check
// in one request hits the same memo cache.
type AuthzMiddleware struct {
	svc *authz.Service
}

// NewAuthzMiddleware creates the helper-attaching middleware
func NewAuthzMiddleware(svc *authz.Service) *AuthzMiddleware {
	return &AuthzMiddleware{svc: svc}
}

// Handler attaches a permission helper for the authenticated identity.
// Requests without an identity pass through untouched; the permission
// gates downstream reject them.
func (m *AuthzMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := GetIdentity(r)
		if ident == nil {
			next.ServeHTTP(w, r)
			return
		}

		helper, err := authz.NewHelper(ident.UserID, m.svc)
		if err != nil {
			writeAuthzError(w, http.StatusInternalServerError, "authorization unavailable")
			return
		}

		ctx := contextkeys.WithAuthzHelper(r.Context(), helper)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetHelper extracts the request-scoped permission helper
func GetHelper(r *http.Request) *authz.Helper {
	val := r.Context().Value(contextkeys.AuthzHelperKey)
	if val == nil {
		return nil
	}
	helper, ok := val.(*authz.Helper)
	if !ok {
		return nil
	}
	return helper
}

// RequireWorkspacePermission gates a route on a workspace-scoped
// permission. The workspace ID is read from the named route variable.
func RequireWorkspacePermission(workspaceVar string, perm authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			helper := GetHelper(r)
			if helper == nil {
				writeAuthzError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			workspaceID := mux.Vars(r)[workspaceVar]
			if err := helper.RequireWorkspacePermission(r.Context(), workspaceID, perm, ""); err != nil {
				writeRequireError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireGlobalPermission gates a route on holding a permission in any
// workspace the caller belongs to.
func RequireGlobalPermission(perm authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			helper := GetHelper(r)
			if helper == nil {
				writeAuthzError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if err := helper.RequireGlobalPermission(r.Context(), perm, ""); err != nil {
				writeRequireError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRequireError maps helper failures onto HTTP statuses: invalid
// input is a client error, everything else is a denial.
func writeRequireError(w http.ResponseWriter, err error) {
	if errors.Is(err, authz.ErrInvalidRequest) {
		writeAuthzError(w, http.StatusBadRequest, err.Error())
		return
	}

	var authzErr *authz.AuthorizationError
	if errors.As(err, &authzErr) {
		writeAuthzError(w, http.StatusForbidden, authzErr.Message)
		return
	}
	writeAuthzError(w, http.StatusForbidden, authz.MsgInsufficientPermissions)
}

func writeAuthzError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
