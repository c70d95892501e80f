package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/devilmonastery/pocketid-dashboard/internal/config"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
)

// record is the shape persisted in the session store. Tokens is raw so the
// loader can accept both the encrypted envelope and a plaintext token set
// written before encryption was enabled.
type record struct {
	User         *entities.User  `json:"user,omitempty"`
	Tokens       json.RawMessage `json:"tokens,omitempty"`
	TokenExpiry  *time.Time      `json:"tokenExpiry,omitempty"`
	CodeVerifier string          `json:"codeVerifier,omitempty"`
	State        string          `json:"state,omitempty"`
}

// Manager owns the session lifecycle: the browser cookie carries only an
// opaque session ID, everything else lives server side, with the token set
// encrypted at rest.
type Manager struct {
	store      *sessions.CookieStore
	repo       repositories.SessionRepository
	cipher     *Cipher
	log        *slog.Logger
	cookieName string
	maxAge     time.Duration
}

// NewManager creates a session manager over the given store and cipher
func NewManager(cfg config.SessionConfig, repo repositories.SessionRepository, cipher *Cipher, log *slog.Logger) *Manager {
	maxAge := cfg.MaxAge.Std()
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{
		store:      store,
		repo:       repo,
		cipher:     cipher,
		log:        log.With(slog.String("component", "session")),
		cookieName: cfg.CookieName,
		maxAge:     maxAge,
	}
}

// Load resolves the request's session. A missing cookie, unknown session ID,
// or expired row yields a fresh empty session. A row whose token envelope no
// longer decrypts is destroyed on the spot; the user just logs in again.
func (m *Manager) Load(r *http.Request) *entities.Session {
	ctx := r.Context()

	cookieSess, err := m.store.Get(r, m.cookieName)
	if err != nil {
		// Undecodable cookie (rotated secret, tampering); start over
		return m.newSession()
	}

	sid, ok := cookieSess.Values["sid"].(string)
	if !ok || sid == "" {
		return m.newSession()
	}

	blob, err := m.repo.Get(ctx, sid)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			m.log.Error("session load failed", slog.Any("error", err))
		}
		return m.newSession()
	}

	var rec record
	if err := json.Unmarshal(blob, &rec); err != nil {
		m.log.Warn("malformed session record, destroying",
			slog.String("session_id", sid[:min(8, len(sid))]), slog.Any("error", err))
		m.destroyRow(ctx, sid, "malformed")
		return m.newSession()
	}

	sess := &entities.Session{
		ID:           sid,
		User:         rec.User,
		TokenExpiry:  rec.TokenExpiry,
		CodeVerifier: rec.CodeVerifier,
		State:        rec.State,
	}

	if len(rec.Tokens) > 0 {
		ts, err := m.decodeTokens(rec.Tokens)
		if err != nil {
			m.log.Warn("session token decryption failed, destroying",
				slog.String("session_id", sid[:min(8, len(sid))]), slog.Any("error", err))
			m.destroyRow(ctx, sid, "decrypt_failure")
			return m.newSession()
		}
		sess.TokenSet = ts
	}

	return sess
}

// decodeTokens opens the encrypted envelope, or falls back to a plaintext
// token set for rows predating encryption
func (m *Manager) decodeTokens(raw json.RawMessage) (*entities.TokenSet, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Encrypted {
		return m.cipher.DecryptTokenSet(&env)
	}

	var ts entities.TokenSet
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, fmt.Errorf("token payload is neither envelope nor token set: %w", err)
	}
	return &ts, nil
}

// Save persists the session and sets the cookie. Always encrypts the token
// set on the way out, so legacy plaintext rows are upgraded on first write.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, sess *entities.Session) error {
	if err := m.Persist(r.Context(), sess); err != nil {
		return err
	}

	cookieSess, _ := m.store.Get(r, m.cookieName)
	cookieSess.Values["sid"] = sess.ID
	cookieSess.Options.MaxAge = int(m.maxAge.Seconds())
	if err := cookieSess.Save(r, w); err != nil {
		return fmt.Errorf("failed to write session cookie: %w", err)
	}
	return nil
}

// Persist writes the session row without touching the response. Used by the
// background token refresh, which has no ResponseWriter.
func (m *Manager) Persist(ctx context.Context, sess *entities.Session) error {
	rec := record{
		User:         sess.User,
		TokenExpiry:  sess.TokenExpiry,
		CodeVerifier: sess.CodeVerifier,
		State:        sess.State,
	}

	if sess.TokenSet != nil {
		env, err := m.cipher.EncryptTokenSet(sess.TokenSet)
		if err != nil {
			return fmt.Errorf("failed to encrypt token set: %w", err)
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to encode token envelope: %w", err)
		}
		rec.Tokens = raw
	}

	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	if err := m.repo.Put(ctx, sess.ID, blob, time.Now().Add(m.maxAge)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Destroy deletes the session row and clears the cookie
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, sess *entities.Session, reason string) {
	m.destroyRow(r.Context(), sess.ID, reason)

	cookieSess, _ := m.store.Get(r, m.cookieName)
	cookieSess.Options.MaxAge = -1
	if err := cookieSess.Save(r, w); err != nil {
		m.log.Error("failed to clear session cookie", slog.Any("error", err))
	}
}

// Regenerate gives the session a new ID and drops the old row. Called after
// a successful login so the post-auth session never shares an ID with the
// pre-auth one.
func (m *Manager) Regenerate(ctx context.Context, sess *entities.Session) error {
	oldID := sess.ID
	sess.ID = newSessionID()

	if err := m.Persist(ctx, sess); err != nil {
		sess.ID = oldID
		return err
	}

	if oldID != "" {
		if err := m.repo.Delete(ctx, oldID); err != nil {
			m.log.Warn("failed to delete pre-login session row", slog.Any("error", err))
		}
	}
	return nil
}

func (m *Manager) destroyRow(ctx context.Context, sid, reason string) {
	if sid == "" {
		return
	}
	if err := m.repo.Delete(ctx, sid); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		m.log.Error("failed to delete session row", slog.Any("error", err))
		return
	}
	metrics.SessionsDestroyed.WithLabelValues(reason).Inc()
}

func (m *Manager) newSession() *entities.Session {
	return &entities.Session{ID: newSessionID()}
}

// newSessionID produces an opaque 256-bit session identifier
func newSessionID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
