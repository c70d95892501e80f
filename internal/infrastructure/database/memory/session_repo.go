// Package memory provides in-process repository implementations, used when no
// database URL is configured and by tests. Sessions do not survive restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
)

// SessionRepository implements repositories.SessionRepository in memory
type SessionRepository struct {
	mu   sync.RWMutex
	rows map[string]sessionEntry
}

type sessionEntry struct {
	data    []byte
	expired time.Time
}

// NewSessionRepository creates an empty in-memory session repository
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{rows: make(map[string]sessionEntry)}
}

// Get returns the stored blob for a session ID
func (r *SessionRepository) Get(_ context.Context, sid string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rows[sid]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	// Copy so callers can't mutate the stored blob
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, nil
}

// Put inserts or replaces the blob for a session ID
func (r *SessionRepository) Put(_ context.Context, sid string, data []byte, expired time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	r.rows[sid] = sessionEntry{data: stored, expired: expired}
	return nil
}

// Delete removes a session row
func (r *SessionRepository) Delete(_ context.Context, sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rows, sid)
	return nil
}

// DeleteExpired removes all sessions past their GC deadline
func (r *SessionRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for sid, entry := range r.rows {
		if entry.expired.Before(before) {
			delete(r.rows, sid)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of stored sessions (used by tests)
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
