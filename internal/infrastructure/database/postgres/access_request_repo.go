package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/pocketid-dashboard/internal/domain/entities"
	"github.com/devilmonastery/pocketid-dashboard/internal/domain/repositories"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/idgen"
	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
)

// AccessRequestRepository implements repositories.AccessRequestRepository for PostgreSQL
type AccessRequestRepository struct {
	db *sqlx.DB
}

// NewAccessRequestRepository creates a new PostgreSQL access request repository
func NewAccessRequestRepository(db *sqlx.DB) repositories.AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

// Create inserts a new request. A re-request for the same (user, app) pair
// resets the existing row back to pending instead of creating a duplicate.
func (r *AccessRequestRepository) Create(ctx context.Context, req *entities.AccessRequest) (*entities.AccessRequest, error) {
	if req.ID == "" {
		req.ID = idgen.NextID()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	if req.Status == "" {
		req.Status = entities.RequestPending
	}

	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO access_requests (id, user_id, app_id, status, notes, requested_at)
		VALUES (:id, :user_id, :app_id, :status, :notes, :requested_at)
		ON CONFLICT (user_id, app_id) DO UPDATE
		SET status = 'pending', notes = :notes, requested_at = :requested_at
	`, req)
	metrics.RecordDBOperation("access_request", "create", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}

	return r.GetByUserAndApp(ctx, req.UserID, req.AppID)
}

// GetByID returns a request by ID
func (r *AccessRequestRepository) GetByID(ctx context.Context, id string) (*entities.AccessRequest, error) {
	start := time.Now()
	var req entities.AccessRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM access_requests WHERE id = $1`, id)
	metrics.RecordDBOperation("access_request", "get", time.Since(start), err)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}
	return &req, nil
}

// GetByUserAndApp returns the request for a (user, app) pair
func (r *AccessRequestRepository) GetByUserAndApp(ctx context.Context, userID, appID string) (*entities.AccessRequest, error) {
	start := time.Now()
	var req entities.AccessRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT * FROM access_requests WHERE user_id = $1 AND app_id = $2`, userID, appID)
	metrics.RecordDBOperation("access_request", "get_by_user_app", time.Since(start), err)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access request by user and app: %w", err)
	}
	return &req, nil
}

// ListAll returns every request, newest first
func (r *AccessRequestRepository) ListAll(ctx context.Context) ([]*entities.AccessRequest, error) {
	start := time.Now()
	var reqs []*entities.AccessRequest
	err := r.db.SelectContext(ctx, &reqs, `SELECT * FROM access_requests ORDER BY requested_at DESC`)
	metrics.RecordDBOperation("access_request", "list", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	return reqs, nil
}

// ListByUser returns a user's requests, newest first
func (r *AccessRequestRepository) ListByUser(ctx context.Context, userID string) ([]*entities.AccessRequest, error) {
	start := time.Now()
	var reqs []*entities.AccessRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT * FROM access_requests WHERE user_id = $1 ORDER BY requested_at DESC`, userID)
	metrics.RecordDBOperation("access_request", "list_by_user", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests for user: %w", err)
	}
	return reqs, nil
}

// Update applies status/notes changes and returns the updated request
func (r *AccessRequestRepository) Update(ctx context.Context, id string, status, notes string) (*entities.AccessRequest, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx,
		`UPDATE access_requests SET status = $2, notes = $3 WHERE id = $1`, id, status, notes)
	metrics.RecordDBOperation("access_request", "update", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to update access request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, repositories.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete removes a request
func (r *AccessRequestRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `DELETE FROM access_requests WHERE id = $1`, id)
	metrics.RecordDBOperation("access_request", "delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete access request: %w", err)
	}
	return nil
}
