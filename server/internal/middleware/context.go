package middleware

import (
	"context"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

type contextKey string

const sessionKey contextKey = "session"

// WithSession attaches the loaded session to the request context
func WithSession(ctx context.Context, sess *entities.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFrom returns the session placed on the context by the session
// middleware; nil when the middleware did not run
func SessionFrom(ctx context.Context) *entities.Session {
	sess, _ := ctx.Value(sessionKey).(*entities.Session)
	return sess
}

// UserFrom returns the authenticated user, or nil
func UserFrom(ctx context.Context) *entities.User {
	sess := SessionFrom(ctx)
	if sess == nil {
		return nil
	}
	return sess.User
}
