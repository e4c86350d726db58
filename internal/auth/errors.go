package auth

import "errors"

// Sentinel errors returned by the OIDC flow and the JWT layer. Callers
// should use errors.Is for comparison.
var (
	// ErrTokenExpired is returned when a JWT access token has expired.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or verified.
	ErrTokenInvalid = errors.New("auth: token invalid")

	// ErrOIDCStateMismatch is returned when the OAuth2 state parameter does
	// not match the value stored in the session cookie (CSRF protection).
	ErrOIDCStateMismatch = errors.New("auth: oidc state mismatch")

	// ErrOIDCCodeVerifierMissing is returned when the PKCE code verifier is
	// absent from the session during the callback phase.
	ErrOIDCCodeVerifierMissing = errors.New("auth: oidc code verifier missing")

	// ErrNotWhitelisted is returned when the authenticated identity's email
	// is not in the configured whitelist — the base spec's Non-goal limits
	// this server to authenticated-or-not, so whitelist rejection is the
	// only access-control decision made here.
	ErrNotWhitelisted = errors.New("auth: email not in whitelist")
)
