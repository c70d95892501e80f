package entities

import "time"

// TokenSet holds the provider-issued tokens for a logged-in session.
// Persisted encrypted at rest; this plain shape only exists in memory.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Session is the server-side session record. The client only ever holds the
// opaque session ID, delivered as a signed cookie value.
type Session struct {
	ID string `json:"-"`

	// User is present only after a completed login
	User *User `json:"user,omitempty"`

	// TokenSet is present only after a completed login
	TokenSet *TokenSet `json:"tokenSet,omitempty"`

	// TokenExpiry is when the access token goes stale (distinct from the
	// store-level GC timestamp)
	TokenExpiry *time.Time `json:"tokenExpiry,omitempty"`

	// CodeVerifier and State are transient PKCE/CSRF material, set at
	// login initiation and consumed by the callback
	CodeVerifier string `json:"codeVerifier,omitempty"`
	State        string `json:"state,omitempty"`
}

// IsAuthenticated reports whether the session carries a completed login
func (s *Session) IsAuthenticated() bool {
	return s.User != nil && s.User.ID != ""
}

// IsMalformed reports a half-formed session: user data present but without
// an ID. Such sessions must be destroyed, never served.
func (s *Session) IsMalformed() bool {
	return s.User != nil && s.User.ID == ""
}

// TokenExpired reports whether the access token is past its expiry
func (s *Session) TokenExpired(now time.Time) bool {
	return s.TokenExpiry != nil && now.After(*s.TokenExpiry)
}

// NeedsRefresh reports whether the access token expires within the window
// and a refresh token is available to renew it
func (s *Session) NeedsRefresh(now time.Time, window time.Duration) bool {
	if s.TokenExpiry == nil || s.TokenSet == nil || s.TokenSet.RefreshToken == "" {
		return false
	}
	return now.Add(window).After(*s.TokenExpiry) && !s.TokenExpired(now)
}

// ClearLoginState drops the single-use PKCE/CSRF material
func (s *Session) ClearLoginState() {
	s.CodeVerifier = ""
	s.State = ""
}
