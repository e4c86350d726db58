package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gisst-archive/gisst/internal/auth"
)

const (
	// oidcStateCookie and oidcVerifierCookie hold the OIDC state and PKCE
	// code verifier between the authorization redirect and the callback.
	// Both are short-lived and httpOnly.
	oidcStateCookie    = "gisst_oidc_state"
	oidcVerifierCookie = "gisst_oidc_verifier"

	// sessionCookie holds the JWT access token for browser navigations
	// (the citation/player pages are plain links, not an API client, so
	// there is no Authorization header to attach).
	sessionCookie = "gisst_session"

	oidcCookieTTL = 10 * time.Minute
)

// AuthHandler groups the login/callback/logout HTTP handlers. It depends
// on AuthService as the single entry point for all auth operations.
type AuthHandler struct {
	svc    *auth.AuthService
	logger *zap.Logger
	secure bool // true in production (HTTPS), false in local development
}

// NewAuthHandler creates a new AuthHandler. secure controls whether
// cookies are set with the Secure flag.
func NewAuthHandler(svc *auth.AuthService, logger *zap.Logger, secure bool) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger.Named("auth_handler"), secure: secure}
}

// Login handles GET /login. Generates the Google authorization URL and
// redirects the browser there, storing state and PKCE verifier in
// short-lived httpOnly cookies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	redirectURL, state, codeVerifier, err := h.svc.AuthorizationURL()
	if err != nil {
		h.logger.Error("failed to generate oidc authorization url", zap.Error(err))
		Err(w, err)
		return
	}

	expires := time.Now().Add(oidcCookieTTL)
	http.SetCookie(w, &http.Cookie{
		Name: oidcStateCookie, Value: state, Expires: expires,
		HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteLaxMode, Path: "/",
	})
	http.SetCookie(w, &http.Cookie{
		Name: oidcVerifierCookie, Value: codeVerifier, Expires: expires,
		HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteLaxMode, Path: "/",
	})

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Callback handles GET /auth/{provider}/callback. Only "google" is
// currently wired; any other provider value is rejected with 400.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if provider := chi.URLParam(r, "provider"); provider != "google" {
		ErrBadRequest(w, "unsupported auth provider")
		return
	}
	stateCookie, err := r.Cookie(oidcStateCookie)
	if err != nil {
		ErrBadRequest(w, "missing oidc state cookie")
		return
	}
	verifierCookie, err := r.Cookie(oidcVerifierCookie)
	if err != nil {
		ErrBadRequest(w, "missing oidc verifier cookie")
		return
	}
	h.clearOIDCCookies(w)

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		ErrBadRequest(w, "missing code or state parameter")
		return
	}

	session, err := h.svc.ExchangeCode(r.Context(), auth.OIDCCallbackRequest{
		Code:         code,
		State:        state,
		SessionState: stateCookie.Value,
		CodeVerifier: verifierCookie.Value,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNotWhitelisted) {
			ErrBadRequest(w, "this account is not permitted to access this archive")
			return
		}
		h.logger.Error("oidc code exchange failed", zap.Error(err))
		Err(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name: sessionCookie, Value: session.AccessToken, Expires: session.ExpiresAt,
		HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteLaxMode, Path: "/",
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout handles GET /logout. Clears the session cookie; since sessions
// are not persisted server-side, there is nothing further to revoke —
// the client must repeat the OIDC redirect to re-authenticate.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name: sessionCookie, Value: "", Expires: time.Unix(0, 0), MaxAge: -1,
		HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteLaxMode, Path: "/",
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *AuthHandler) clearOIDCCookies(w http.ResponseWriter) {
	for _, name := range []string{oidcStateCookie, oidcVerifierCookie} {
		http.SetCookie(w, &http.Cookie{
			Name: name, Value: "", Expires: time.Unix(0, 0), MaxAge: -1,
			HttpOnly: true, Secure: h.secure, SameSite: http.SameSiteLaxMode, Path: "/",
		})
	}
}
