package repository

import (
	"context"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/session/domain"
)

// Repository defines persistence for the per-account active session slot.
type Repository interface {
	// Replace atomically supersedes any existing record for the session's user
	// and inserts the new one active. There is no window where two records for
	// the user coexist or where a concurrent reader sees none.
	Replace(ctx context.Context, s *domain.Session) error
	// GetActive returns the active session for userID, or nil if none.
	GetActive(ctx context.Context, userID string) (*domain.Session, error)
	// IsActive reports whether userID's active session token matches token exactly.
	IsActive(ctx context.Context, userID, token string) (bool, error)
	// DeactivateAll marks the user's session record inactive regardless of token.
	DeactivateAll(ctx context.Context, userID string) error
	// DeactivateOne marks the record inactive only when token matches; a stale
	// token is a no-op.
	DeactivateOne(ctx context.Context, userID, token string) error
	// UpdateLastActivity sets the session's last-activity timestamp.
	UpdateLastActivity(ctx context.Context, userID string, at time.Time) error
}
