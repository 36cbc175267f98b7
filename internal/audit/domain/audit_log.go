package domain

import "time"

// AuditLog is a single recorded action against an account's session or
// approval state.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
