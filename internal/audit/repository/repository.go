package repository

import (
	"context"

	"github.com/MarkJaven/thodemy-sub002/internal/audit/domain"
)

// Repository defines persistence for audit log entries.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int32) ([]*domain.AuditLog, error)
}
