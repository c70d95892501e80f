package entities

import "time"

// Access request statuses
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// AccessRequest is a user's request to be granted access to an application.
// One row exists per (user, app); re-requesting resets the status to pending.
type AccessRequest struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	AppID       string    `json:"appId" db:"app_id"`
	Status      string    `json:"status" db:"status"`
	Notes       string    `json:"notes" db:"notes"`
	RequestedAt time.Time `json:"requestedAt" db:"requested_at"`
}

// IsValidStatus reports whether s is a status an admin may set
func IsValidStatus(s string) bool {
	return s == RequestApproved || s == RequestRejected
}
