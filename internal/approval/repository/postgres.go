package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an approval request repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the pending request. The partial unique index on
// (user_id, requesting_device_id) WHERE status='pending' makes duplicate
// creates collide; the conflicting insert is dropped and the existing pending
// row is returned instead, so flaky-client retries always see one request id.
func (r *PostgresRepository) Create(ctx context.Context, req *domain.Request) (*domain.Request, bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO approval_requests (id, user_id, requesting_device_id, requesting_device_label, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (user_id, requesting_device_id) WHERE status = 'pending' DO NOTHING
		RETURNING id`,
		req.ID, req.UserID, req.RequestingDeviceID, req.RequestingDeviceLabel, req.CreatedAt).Scan(&id)
	if err == nil {
		inserted := *req
		inserted.Status = domain.StatusPending
		return &inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Conflict path: another pending request for this pair already exists.
	existing, err := r.GetPendingByUserAndDevice(ctx, req.UserID, req.RequestingDeviceID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// The pending row was resolved between the insert and the lookup.
		// Treat like any other retry: the caller can call Create again.
		return nil, false, fmt.Errorf("approval: pending request for user %s vanished during create", req.UserID)
	}
	return existing, false, nil
}

// GetByID returns the request for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, requesting_device_id, requesting_device_label, status, created_at, resolved_at
		FROM approval_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// GetPendingByUser returns the user's oldest pending request, or nil if none.
func (r *PostgresRepository) GetPendingByUser(ctx context.Context, userID string) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, requesting_device_id, requesting_device_label, status, created_at, resolved_at
		FROM approval_requests
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1`, userID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// GetPendingByUserAndDevice returns the pending request for the exact
// (user, requesting device) pair, or nil if none.
func (r *PostgresRepository) GetPendingByUserAndDevice(ctx context.Context, userID, deviceID string) (*domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, requesting_device_id, requesting_device_label, status, created_at, resolved_at
		FROM approval_requests
		WHERE user_id = $1 AND requesting_device_id = $2 AND status = 'pending'`, userID, deviceID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// ErrNotFound is returned by Resolve for an unknown request id.
var ErrNotFound = errors.New("approval request not found")

// Resolve transitions pending → decision in one guarded statement. The
// WHERE status='pending' clause is the single-writer-wins rule: of two
// concurrent resolutions only the first updates a row, the second falls
// through to reading the already-recorded terminal status.
func (r *PostgresRepository) Resolve(ctx context.Context, id string, decision domain.Status) (domain.Status, error) {
	if decision != domain.StatusApproved && decision != domain.StatusDenied {
		return "", fmt.Errorf("approval: invalid decision %q", decision)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE approval_requests SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, string(decision), time.Now().UTC())
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n > 0 {
		return decision, nil
	}

	// No pending row: either the id is unknown or the request is terminal.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", ErrNotFound
	}
	return existing.Status, nil
}

// ExpireStale moves pending requests created before cutoff to timeout.
// Run periodically by the sweeper so stalled approvers do not accumulate rows.
func (r *PostgresRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE approval_requests SET status = 'timeout', resolved_at = $2
		WHERE status = 'pending' AND created_at < $1`,
		cutoff, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var (
		req      domain.Request
		status   string
		resolved sql.NullTime
	)
	if err := row.Scan(&req.ID, &req.UserID, &req.RequestingDeviceID,
		&req.RequestingDeviceLabel, &status, &req.CreatedAt, &resolved); err != nil {
		return nil, err
	}
	req.Status = domain.Status(status)
	if !req.Status.Valid() {
		req.Status = domain.StatusUnknown
	}
	if resolved.Valid {
		req.ResolvedAt = &resolved.Time
	}
	return &req, nil
}
