package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

// Scopes requested from the provider. "groups" is the Pocket-ID claim the
// whole dashboard is built around.
var Scopes = []string{"openid", "profile", "email", "groups"}

// Protocol-state errors surfaced to the route layer
var (
	// ErrNotInitialized means discovery has not succeeded yet; auth routes
	// respond 503 until it does
	ErrNotInitialized = errors.New("oidc client not initialized")

	// ErrLoginSessionLost means the callback arrived without the PKCE code
	// verifier, i.e. the login session did not survive the round trip
	ErrLoginSessionLost = errors.New("login session lost")

	// ErrStateMismatch means the callback state does not match the session
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrMissingCode means the callback carried no authorization code
	ErrMissingCode = errors.New("missing authorization code")
)

// LoginResult is what a successful callback exchange produces
type LoginResult struct {
	TokenSet *entities.TokenSet
	Claims   *Claims
	// TokenExpiry is the absolute access-token expiry; zero when the
	// provider did not report a lifetime
	TokenExpiry time.Time
}

// Client handles all protocol-level interaction with the upstream provider.
// Provider metadata is held behind an atomic pointer: readers either see a
// fully populated document or "not initialized", never partial state.
type Client struct {
	cfg        config.OIDCConfig
	log        *slog.Logger
	httpClient *http.Client

	meta atomic.Pointer[ProviderMetadata]
	jwks atomic.Pointer[JWKSCache]
}

// NewClient creates an uninitialized client; call Initialize before use
func NewClient(cfg config.OIDCConfig, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		log: log.With(slog.String("component", "oidc")),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Initialize performs OIDC discovery. Failure leaves the client unusable but
// the process alive; callers keep serving non-auth routes in the meantime.
func (c *Client) Initialize(ctx context.Context) error {
	doc, err := fetchProviderMetadata(ctx, c.httpClient, c.cfg.DiscoveryURL)
	if err != nil {
		return fmt.Errorf("oidc discovery failed: %w", err)
	}

	c.jwks.Store(NewJWKSCache(doc.JWKSURI, time.Hour))
	c.meta.Store(doc)

	c.log.Info("oidc provider discovered",
		slog.String("issuer", doc.Issuer),
		slog.String("authorization_endpoint", doc.AuthorizationEndpoint),
		slog.String("token_endpoint", doc.TokenEndpoint))
	return nil
}

// Initialized reports whether discovery has succeeded
func (c *Client) Initialized() bool {
	return c.meta.Load() != nil
}

// RetryInitialize keeps retrying discovery until it succeeds or ctx ends.
// Run on its own goroutine after a failed startup discovery.
func (c *Client) RetryInitialize(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Initialized() {
				return
			}
			if err := c.Initialize(ctx); err != nil {
				c.log.Warn("oidc discovery retry failed", slog.Any("error", err))
				continue
			}
			return
		}
	}
}

// BeginLogin generates fresh PKCE and CSRF material, stores it on the
// session, and returns the authorization URL. The caller must persist the
// session before redirecting, otherwise the browser can reach the provider
// before the verifier hits the store.
func (c *Client) BeginLogin(sess *entities.Session) (string, error) {
	meta := c.meta.Load()
	if meta == nil {
		return "", ErrNotInitialized
	}

	verifier := oauth2.GenerateVerifier()
	state := generateState()

	sess.CodeVerifier = verifier
	sess.State = state

	authURL := c.oauthConfig(meta).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authURL, nil
}

// HandleCallback validates the callback query against the session's in-flight
// login state, exchanges the authorization code, and verifies the ID token.
// The authorization code is single-use by protocol design: nothing here is
// ever retried.
func (c *Client) HandleCallback(ctx context.Context, sess *entities.Session, query url.Values) (*LoginResult, error) {
	meta := c.meta.Load()
	if meta == nil {
		return nil, ErrNotInitialized
	}

	if sess.CodeVerifier == "" {
		return nil, ErrLoginSessionLost
	}
	if query.Get("state") != sess.State {
		return nil, ErrStateMismatch
	}
	code := query.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauthConfig(meta).Exchange(ctx, code, oauth2.VerifierOption(sess.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("provider returned no id_token")
	}

	claims, err := verifyIDToken(ctx, c.jwks.Load(), idToken, meta.Issuer, c.cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("id token validation failed: %w", err)
	}

	// The verifier and state are single-use; drop them now that the
	// exchange has consumed them
	sess.ClearLoginState()

	return &LoginResult{
		TokenSet: &entities.TokenSet{
			AccessToken:  tok.AccessToken,
			IDToken:      idToken,
			RefreshToken: tok.RefreshToken,
		},
		Claims:      claims,
		TokenExpiry: tok.Expiry,
	}, nil
}

// Refresh exchanges a refresh token for a new token set. The caller persists
// the result; if the provider issued no new refresh token, the old one is
// carried forward.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*entities.TokenSet, time.Time, error) {
	meta := c.meta.Load()
	if meta == nil {
		return nil, time.Time{}, ErrNotInitialized
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauthConfig(meta).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("refresh token exchange failed: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)

	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	return &entities.TokenSet{
		AccessToken:  tok.AccessToken,
		IDToken:      idToken,
		RefreshToken: newRefresh,
	}, tok.Expiry, nil
}

// LogoutURL builds the provider's end-session URL for the given ID token.
// ok is false when the provider advertises no end_session_endpoint (or
// discovery never succeeded); the caller still destroys the session.
func (c *Client) LogoutURL(idToken string) (string, bool) {
	meta := c.meta.Load()
	if meta == nil || meta.EndSessionEndpoint == "" {
		return "", false
	}

	u, err := url.Parse(meta.EndSessionEndpoint)
	if err != nil {
		return "", false
	}

	q := u.Query()
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if c.cfg.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", c.cfg.PostLogoutRedirectURI)
	}
	u.RawQuery = q.Encode()

	return u.String(), true
}

func (c *Client) oauthConfig(meta *ProviderMetadata) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  meta.AuthorizationEndpoint,
			TokenURL: meta.TokenEndpoint,
		},
	}
}

// generateState produces a random CSRF state token
func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
