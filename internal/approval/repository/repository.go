package repository

import (
	"context"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
)

// Repository defines persistence for approval requests.
type Repository interface {
	// Create inserts a pending request. If a pending request already exists for
	// the same (user, requesting device) pair, the existing request is returned
	// with created=false and no new row is inserted.
	Create(ctx context.Context, req *domain.Request) (existing *domain.Request, created bool, err error)
	// GetByID returns the request for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	// GetPendingByUser returns the user's oldest pending request, or nil if none.
	GetPendingByUser(ctx context.Context, userID string) (*domain.Request, error)
	// Resolve transitions pending → decision exactly once and returns the
	// resulting status. Resolving an already-terminal request returns the stored
	// terminal status unchanged.
	Resolve(ctx context.Context, id string, decision domain.Status) (domain.Status, error)
	// ExpireStale moves pending requests created before cutoff to timeout and
	// returns how many rows changed.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}
