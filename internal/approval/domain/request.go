package domain

import "time"

// Status is the lifecycle state of an approval request. Every status except
// StatusPending is terminal: the first transition out of pending wins and all
// later decisions for the same request are no-ops.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusTimeout  Status = "timeout"
	StatusUnknown  Status = "unknown"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusTimeout, StatusUnknown:
		return true
	}
	return false
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Request is a new device's bid to take over the account's active session
// slot. Owned by the approval store; mutated only by resolve and the expiry
// sweep.
type Request struct {
	ID                    string
	UserID                string
	RequestingDeviceID    string
	RequestingDeviceLabel string
	Status                Status
	CreatedAt             time.Time
	ResolvedAt            *time.Time // nil while pending
}
