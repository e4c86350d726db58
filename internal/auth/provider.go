package auth

import "time"

// OIDCCallbackRequest carries the parameters received in the OAuth2
// callback from Google.
type OIDCCallbackRequest struct {
	Code         string
	State        string
	SessionState string
	CodeVerifier string
}

// Session is returned after a successful OIDC exchange: a signed access
// token for the Authenticate middleware to validate on subsequent
// requests. There is no refresh token — sessions are re-established by
// repeating the OIDC redirect when the access token expires, matching the
// base spec's treatment of the full OAuth session policy as an external
// collaborator's concern.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
}
