package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/gisst-archive/gisst/internal/catalog"
)

const (
	// oidcStateBytes is the length of the random state parameter for CSRF protection.
	oidcStateBytes = 16

	// oidcCodeVerifierBytes is the length of the PKCE code verifier before
	// encoding. RFC 7636 requires a minimum of 32 bytes of entropy.
	oidcCodeVerifierBytes = 32

	googleIssuer = "https://accounts.google.com"
)

// GoogleOIDCProvider implements the single-provider OAuth2 + OIDC
// Authorization Code flow (with PKCE) against Google, provisioning a
// catalog.User and catalog.Creator on first login (JIT provisioning).
type GoogleOIDCProvider struct {
	oauth2Cfg  oauth2.Config
	whitelist  []string
	users      catalog.UserRepository
	creators   catalog.CreatorRepository
	jwtManager *JWTManager
}

// NewGoogleOIDCProvider constructs a GoogleOIDCProvider. redirectURL is
// this server's own /auth/google/callback endpoint.
func NewGoogleOIDCProvider(clientID, clientSecret, redirectURL string, whitelist []string, users catalog.UserRepository, creators catalog.CreatorRepository, jwtManager *JWTManager) *GoogleOIDCProvider {
	return &GoogleOIDCProvider{
		oauth2Cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{"openid", "email", "profile"},
		},
		whitelist:  whitelist,
		users:      users,
		creators:   creators,
		jwtManager: jwtManager,
	}
}

// AuthorizationURL generates the Google authorization URL with a random
// state parameter and PKCE code verifier. The caller must store state and
// codeVerifier in short-lived session cookies before redirecting.
func (p *GoogleOIDCProvider) AuthorizationURL() (url, state, codeVerifier string, err error) {
	state, err = generateRandomBase64(oidcStateBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("auth: generating oidc state: %w", err)
	}
	codeVerifier, err = generateRandomBase64(oidcCodeVerifierBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("auth: generating pkce code verifier: %w", err)
	}
	url = p.oauth2Cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(codeVerifier))
	return url, state, codeVerifier, nil
}

// ExchangeCode completes the Authorization Code flow: verifies state,
// exchanges the code, validates the ID token, checks the whitelist, and
// finds-or-provisions the catalog User and Creator.
func (p *GoogleOIDCProvider) ExchangeCode(ctx context.Context, req OIDCCallbackRequest) (*Session, error) {
	if req.State != req.SessionState {
		return nil, ErrOIDCStateMismatch
	}
	if req.CodeVerifier == "" {
		return nil, ErrOIDCCodeVerifierMissing
	}

	oauth2Token, err := p.oauth2Cfg.Exchange(ctx, req.Code, oauth2.VerifierOption(req.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging oidc code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("auth: oidc token response missing id_token")
	}

	oidcProvider, err := gooidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("auth: initializing oidc provider: %w", err)
	}
	verifier := oidcProvider.Verifier(&gooidc.Config{ClientID: p.oauth2Cfg.ClientID})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying oidc id_token: %w", err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: extracting oidc claims: %w", err)
	}

	if len(p.whitelist) > 0 && !slices.Contains(p.whitelist, claims.Email) {
		return nil, ErrNotWhitelisted
	}

	user, err := p.findOrProvisionUser(ctx, claims.Sub, claims.Email, claims.Name)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := p.jwtManager.GenerateAccessToken(user.ID.String(), user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

func (p *GoogleOIDCProvider) findOrProvisionUser(ctx context.Context, sub, email, displayName string) (*catalog.User, error) {
	user, err := p.users.GetByIssSub(ctx, googleIssuer, sub)
	if err == nil {
		user.Email = email
		user.DisplayName = displayName
		if upsertErr := p.users.Upsert(ctx, user); upsertErr != nil {
			return nil, fmt.Errorf("auth: refreshing oidc user: %w", upsertErr)
		}
		return user, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("auth: looking up oidc user: %w", err)
	}

	creator := catalog.Creator{Username: email, FullName: displayName}
	if err := p.creators.Insert(ctx, &creator); err != nil {
		return nil, fmt.Errorf("auth: provisioning creator: %w", err)
	}

	newUser := &catalog.User{
		Iss:         googleIssuer,
		Sub:         sub,
		CreatorID:   creator.ID,
		Email:       email,
		DisplayName: displayName,
	}
	if err := p.users.Upsert(ctx, newUser); err != nil {
		return nil, fmt.Errorf("auth: provisioning oidc user: %w", err)
	}
	return newUser, nil
}

func generateRandomBase64(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
