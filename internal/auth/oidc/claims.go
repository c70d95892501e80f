package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the standardized claims extracted from an OIDC ID token
type Claims struct {
	// Subject - unique identifier for the user at the provider
	Subject string

	// Email address of the user
	Email string

	// Name is the user's full display name
	Name string

	// Groups the user belongs to at the provider
	Groups []string

	// Picture is the URL to the user's profile picture
	Picture string

	// IssuedAt is when the token was issued
	IssuedAt time.Time

	// ExpiresAt is when the token expires
	ExpiresAt time.Time
}

// InGroup reports whether the claims carry the named group
func (c *Claims) InGroup(name string) bool {
	for _, g := range c.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// verifyIDToken validates an ID token signature against the provider JWKS and
// extracts the claims this dashboard cares about
func verifyIDToken(ctx context.Context, jwks *JWKSCache, idToken, issuer, clientID string) (*Claims, error) {
	token, err := jwt.Parse(idToken, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in token header")
		}

		publicKey, err := jwks.GetKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}

		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims format")
	}

	// Validate issuer
	iss, _ := mapClaims["iss"].(string)
	if iss != issuer {
		return nil, fmt.Errorf("invalid issuer: %s (expected %s)", iss, issuer)
	}

	// Validate audience (client ID); the aud claim can be a string or an
	// array of strings per OIDC spec
	var aud string
	switch v := mapClaims["aud"].(type) {
	case string:
		aud = v
	case []interface{}:
		if len(v) > 0 {
			if audStr, ok := v[0].(string); ok {
				aud = audStr
			}
		}
	}
	if aud != "" && aud != clientID {
		return nil, fmt.Errorf("invalid audience: %s (expected %s)", aud, clientID)
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("missing sub claim")
	}

	email, _ := mapClaims["email"].(string)

	// Display name with the usual fallbacks
	name, _ := mapClaims["name"].(string)
	if name == "" {
		name, _ = mapClaims["preferred_username"].(string)
	}

	picture, _ := mapClaims["picture"].(string)
	groups := stringSlice(mapClaims["groups"])

	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	return &Claims{
		Subject:   sub,
		Email:     email,
		Name:      name,
		Groups:    groups,
		Picture:   picture,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}

// stringSlice converts a JSON array claim into []string, dropping anything
// that isn't a string
func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
