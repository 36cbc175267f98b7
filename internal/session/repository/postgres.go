package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Replace upserts the account's single session row. The PRIMARY KEY on user_id
// makes this one atomic statement: the previous record is superseded in place.
func (r *PostgresRepository) Replace(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_sessions (user_id, session_token, device_info, user_agent, logged_in_at, last_activity_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $5, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			session_token    = EXCLUDED.session_token,
			device_info      = EXCLUDED.device_info,
			user_agent       = EXCLUDED.user_agent,
			logged_in_at     = EXCLUDED.logged_in_at,
			last_activity_at = EXCLUDED.last_activity_at,
			is_active        = TRUE`,
		s.UserID, s.SessionToken, s.DeviceInfo, s.UserAgent, s.LoggedInAt)
	return err
}

// GetActive returns the active session for userID, or nil if the user has no
// record or the record is inactive. It returns an error only for database
// failures, not for missing rows.
func (r *PostgresRepository) GetActive(ctx context.Context, userID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, session_token, device_info, user_agent, logged_in_at, last_activity_at, is_active
		FROM active_sessions
		WHERE user_id = $1 AND is_active`, userID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// IsActive reports whether the user's session record is active and its token matches exactly.
func (r *PostgresRepository) IsActive(ctx context.Context, userID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var active bool
	err := r.db.QueryRowContext(ctx, `
		SELECT is_active FROM active_sessions
		WHERE user_id = $1 AND session_token = $2`, userID, token).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return active, nil
}

// DeactivateAll marks the user's session record inactive. A user with no
// record is a no-op, not an error.
func (r *PostgresRepository) DeactivateAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions SET is_active = FALSE WHERE user_id = $1`, userID)
	return err
}

// DeactivateOne marks the record inactive only when both user and token match.
func (r *PostgresRepository) DeactivateOne(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions SET is_active = FALSE
		WHERE user_id = $1 AND session_token = $2`, userID, token)
	return err
}

// UpdateLastActivity sets the session's last-activity timestamp for the given user.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions SET last_activity_at = $2 WHERE user_id = $1`, userID, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.UserID, &s.SessionToken, &s.DeviceInfo, &s.UserAgent,
		&s.LoggedInAt, &s.LastActivityAt, &s.IsActive); err != nil {
		return nil, err
	}
	return &s, nil
}
