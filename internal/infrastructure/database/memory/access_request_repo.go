package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/idgen"
)

// AccessRequestRepository implements repositories.AccessRequestRepository in memory
type AccessRequestRepository struct {
	mu   sync.RWMutex
	rows map[string]*entities.AccessRequest
}

// NewAccessRequestRepository creates an empty in-memory access request repository
func NewAccessRequestRepository() *AccessRequestRepository {
	return &AccessRequestRepository{rows: make(map[string]*entities.AccessRequest)}
}

// Create inserts a new request, or resets an existing (user, app) row to pending
func (r *AccessRequestRepository) Create(_ context.Context, req *entities.AccessRequest) (*entities.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}

	for _, existing := range r.rows {
		if existing.UserID == req.UserID && existing.AppID == req.AppID {
			existing.Status = entities.RequestPending
			existing.Notes = req.Notes
			existing.RequestedAt = req.RequestedAt
			out := *existing
			return &out, nil
		}
	}

	if req.ID == "" {
		req.ID = idgen.NextID()
	}
	if req.Status == "" {
		req.Status = entities.RequestPending
	}
	stored := *req
	r.rows[req.ID] = &stored
	out := stored
	return &out, nil
}

// GetByID returns a request by ID
func (r *AccessRequestRepository) GetByID(_ context.Context, id string) (*entities.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := *req
	return &out, nil
}

// GetByUserAndApp returns the request for a (user, app) pair
func (r *AccessRequestRepository) GetByUserAndApp(_ context.Context, userID, appID string) (*entities.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, req := range r.rows {
		if req.UserID == userID && req.AppID == appID {
			out := *req
			return &out, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// ListAll returns every request, newest first
func (r *AccessRequestRepository) ListAll(_ context.Context) ([]*entities.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(*entities.AccessRequest) bool { return true }), nil
}

// ListByUser returns a user's requests, newest first
func (r *AccessRequestRepository) ListByUser(_ context.Context, userID string) ([]*entities.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(req *entities.AccessRequest) bool { return req.UserID == userID }), nil
}

// Update applies status/notes changes
func (r *AccessRequestRepository) Update(_ context.Context, id string, status, notes string) (*entities.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	req.Status = status
	req.Notes = notes
	out := *req
	return &out, nil
}

// Delete removes a request
func (r *AccessRequestRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rows, id)
	return nil
}

func (r *AccessRequestRepository) sorted(keep func(*entities.AccessRequest) bool) []*entities.AccessRequest {
	out := make([]*entities.AccessRequest, 0, len(r.rows))
	for _, req := range r.rows {
		if keep(req) {
			copied := *req
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out
}
