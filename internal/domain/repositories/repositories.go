package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
)

// ErrNotFound is returned when a keyed lookup finds no row
var ErrNotFound = errors.New("not found")

// SessionRepository is keyed blob storage for serialized session records.
// The session layer owns serialization and encryption; the repository only
// sees opaque bytes plus the GC deadline.
type SessionRepository interface {
	// Get returns the stored blob for a session ID, or ErrNotFound
	Get(ctx context.Context, sid string) ([]byte, error)

	// Put inserts or replaces the blob for a session ID. expired is the
	// store-level GC deadline, not the token expiry.
	Put(ctx context.Context, sid string, data []byte, expired time.Time) error

	// Delete removes a session immediately and permanently. Deleting a
	// missing session is not an error.
	Delete(ctx context.Context, sid string) error

	// DeleteExpired removes all sessions whose GC deadline has passed and
	// returns how many were removed
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AccessRequestRepository stores access requests
type AccessRequestRepository interface {
	// Create inserts a new request, or resets an existing (user, app) row
	// back to pending with fresh notes and timestamp
	Create(ctx context.Context, req *entities.AccessRequest) (*entities.AccessRequest, error)

	// GetByID returns a request by ID, or ErrNotFound
	GetByID(ctx context.Context, id string) (*entities.AccessRequest, error)

	// GetByUserAndApp returns the request for a (user, app) pair, or ErrNotFound
	GetByUserAndApp(ctx context.Context, userID, appID string) (*entities.AccessRequest, error)

	// ListAll returns every request, newest first
	ListAll(ctx context.Context) ([]*entities.AccessRequest, error)

	// ListByUser returns a user's requests, newest first
	ListByUser(ctx context.Context, userID string) ([]*entities.AccessRequest, error)

	// Update applies status/notes changes and returns the updated request
	Update(ctx context.Context, id string, status, notes string) (*entities.AccessRequest, error)

	// Delete removes a request
	Delete(ctx context.Context, id string) error
}
