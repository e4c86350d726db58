package auth

import "context"

// AuthService is the entry point for all authentication operations. The
// REST API layer depends on AuthService, never on GoogleOIDCProvider
// directly, so that a second provider could be added later without
// touching the HTTP handlers.
type AuthService struct {
	oidc       *GoogleOIDCProvider
	jwtManager *JWTManager
}

// NewAuthService creates an AuthService wrapping the single configured
// OIDC provider.
func NewAuthService(oidc *GoogleOIDCProvider, jwtManager *JWTManager) *AuthService {
	return &AuthService{oidc: oidc, jwtManager: jwtManager}
}

// AuthorizationURL generates the OIDC authorization URL. Returns the URL
// to redirect the user to, plus state and codeVerifier that the caller
// must store in short-lived session cookies before redirecting.
func (s *AuthService) AuthorizationURL() (url, state, codeVerifier string, err error) {
	return s.oidc.AuthorizationURL()
}

// ExchangeCode completes the OIDC Authorization Code flow and returns a
// session carrying a short-lived access token.
func (s *AuthService) ExchangeCode(ctx context.Context, req OIDCCallbackRequest) (*Session, error) {
	return s.oidc.ExchangeCode(ctx, req)
}

// ValidateAccessToken parses and verifies a JWT access token. Used by the
// HTTP middleware to authenticate incoming requests.
func (s *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.jwtManager.ValidateAccessToken(tokenString)
}

// JWTManager exposes the underlying JWTManager for cases where the caller
// needs direct access, e.g. to serve a JWKS endpoint.
func (s *AuthService) JWTManager() *JWTManager {
	return s.jwtManager
}
