package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
)

// SessionRepository implements repositories.SessionRepository for PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repositories.SessionRepository {
	return &SessionRepository{db: db}
}

// sessionRow is a session as stored in the database: an opaque blob plus the
// GC deadline. The session layer owns everything inside the blob.
type sessionRow struct {
	SID     string    `db:"sid"`
	Data    []byte    `db:"data"`
	Expired time.Time `db:"expired"`
}

// Get returns the stored blob for a session ID
func (r *SessionRepository) Get(ctx context.Context, sid string) ([]byte, error) {
	start := time.Now()
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `SELECT sid, data, expired FROM sessions WHERE sid = $1`, sid)
	metrics.RecordDBOperation("session", "get", time.Since(start), err)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return row.Data, nil
}

// Put inserts or replaces the blob for a session ID
func (r *SessionRepository) Put(ctx context.Context, sid string, data []byte, expired time.Time) error {
	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sessions (sid, data, expired)
		VALUES (:sid, :data, :expired)
		ON CONFLICT (sid) DO UPDATE SET data = :data, expired = :expired
	`, sessionRow{SID: sid, Data: data, Expired: expired})
	metrics.RecordDBOperation("session", "put", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete removes a session row. Missing rows are not an error.
func (r *SessionRepository) Delete(ctx context.Context, sid string) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, sid)
	metrics.RecordDBOperation("session", "delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes all sessions past their GC deadline
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expired < $1`, before)
	metrics.RecordDBOperation("session", "sweep", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
