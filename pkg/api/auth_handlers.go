package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/loomhq/loom/pkg/httputil"
	"github.com/loomhq/loom/pkg/identity"
)

const stateCookieName = "loom_oauth_state"

// AuthHandlers serves the OIDC login flow. These routes are public: they
// run before any bearer token exists.
type AuthHandlers struct {
	oidc *identity.OIDCProvider
}

// NewAuthHandlers creates the login-flow handlers
func NewAuthHandlers(oidc *identity.OIDCProvider) *AuthHandlers {
	return &AuthHandlers{oidc: oidc}
}

// RegisterRoutes registers the login endpoints on a router mounted at
// /v1/auth.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.Login).Methods("GET")
	router.HandleFunc("/callback", h.Callback).Methods("GET")
}

// LoginResponse carries the verified identity and the token to present as
// a bearer credential on subsequent requests.
type LoginResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Login starts the authorization-code flow. The anti-forgery state is
// pinned in a short-lived cookie and checked on callback.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/v1/auth",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	h.oidc.InitiateLogin(w, r, state)
}

// Callback completes the code flow: it validates the state cookie,
// exchanges the code, and returns the verified identity with its ID token.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}
	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/v1/auth", MaxAge: -1})

	ident, rawIDToken, err := h.oidc.HandleCallbackToken(r.Context(), r)
	if err != nil {
		httputil.WriteUnauthorized(w, "login failed")
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, LoginResponse{
		UserID: ident.UserID,
		Email:  ident.Email,
		Name:   ident.Name,
		Token:  rawIDToken,
	}, "failed to encode login response")
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
