package service

import (
	"context"
	"errors"
	"time"

	approvaldomain "github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/audit"
	"github.com/MarkJaven/thodemy-sub002/internal/device"
	"github.com/MarkJaven/thodemy-sub002/internal/session/domain"
)

// Sentinel errors for the session lifecycle; handlers map them to HTTP codes.
var (
	ErrApprovalDenied  = errors.New("login rejected by the active device")
	ErrApprovalTimeout = errors.New("login approval timed out")
	ErrApprovalUnknown = errors.New("login approval did not complete")
	ErrMissingToken    = errors.New("session token required")
)

// SessionRepo is the minimal session repository needed by the lifecycle manager.
type SessionRepo interface {
	Replace(ctx context.Context, s *domain.Session) error
	GetActive(ctx context.Context, userID string) (*domain.Session, error)
	IsActive(ctx context.Context, userID, token string) (bool, error)
	DeactivateAll(ctx context.Context, userID string) error
	DeactivateOne(ctx context.Context, userID, token string) error
	UpdateLastActivity(ctx context.Context, userID string, at time.Time) error
}

// ApprovalStarter opens (or joins) a pending approval request for a device.
type ApprovalStarter interface {
	Request(ctx context.Context, userID, deviceID, deviceLabel string) (*approvaldomain.Request, bool, error)
}

// DecisionWaiter blocks until an approval request settles.
type DecisionWaiter interface {
	Await(ctx context.Context, userID, requestID string) (approvaldomain.Status, error)
}

// LifecycleManager owns the per-account session slot: a login either claims
// a free slot, re-claims its own, or goes through cross-device approval to
// displace the current holder. The session token doubles as the device id.
type LifecycleManager struct {
	sessions  SessionRepo
	approvals ApprovalStarter
	decisions DecisionWaiter
	auditLog  audit.AuditLogger
	nowF      func() time.Time
}

// NewLifecycleManager returns a LifecycleManager. auditLog may be nil.
func NewLifecycleManager(sessions SessionRepo, approvals ApprovalStarter, decisions DecisionWaiter, auditLog audit.AuditLogger) *LifecycleManager {
	return &LifecycleManager{
		sessions:  sessions,
		approvals: approvals,
		decisions: decisions,
		auditLog:  auditLog,
		nowF:      time.Now,
	}
}

// CreateSession logs a device in, enforcing at most one active session per
// account. Three paths:
//
//   - no active session: the slot is claimed directly;
//   - the caller already holds the slot (same token): the record is refreshed
//     in place, no approval round-trip;
//   - another device holds the slot: a pending approval request is created
//     and CreateSession blocks until it settles. Only an approved decision
//     claims the slot; denied, timeout, and indeterminate outcomes leave the
//     current holder untouched.
func (m *LifecycleManager) CreateSession(ctx context.Context, userID, sessionToken, deviceInfo, userAgent string) (*domain.Session, error) {
	if sessionToken == "" {
		return nil, ErrMissingToken
	}
	if deviceInfo == "" {
		deviceInfo = device.Label(userAgent)
	}

	current, err := m.sessions.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if current != nil && current.SessionToken != sessionToken {
		req, _, err := m.approvals.Request(ctx, userID, sessionToken, deviceInfo)
		if err != nil {
			return nil, err
		}
		status, err := m.decisions.Await(ctx, userID, req.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, ErrApprovalUnknown
		}
		switch status {
		case approvaldomain.StatusApproved:
			// fall through to claim the slot
		case approvaldomain.StatusDenied:
			return nil, ErrApprovalDenied
		case approvaldomain.StatusTimeout:
			return nil, ErrApprovalTimeout
		default:
			return nil, ErrApprovalUnknown
		}
	}

	now := m.nowF().UTC()
	s := &domain.Session{
		UserID:         userID,
		SessionToken:   sessionToken,
		DeviceInfo:     deviceInfo,
		UserAgent:      userAgent,
		LoggedInAt:     now,
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := m.sessions.Replace(ctx, s); err != nil {
		return nil, err
	}
	if m.auditLog != nil {
		m.auditLog.LogEvent(ctx, userID, "session.create", "session", deviceInfo)
	}
	return s, nil
}

// Announce records the caller as the account's active session without any
// approval round-trip. Used after a login the identity provider has already
// admitted, where the slot handoff was negotiated out of band.
func (m *LifecycleManager) Announce(ctx context.Context, userID, sessionToken, deviceInfo, userAgent string) (*domain.Session, error) {
	if sessionToken == "" {
		return nil, ErrMissingToken
	}
	if deviceInfo == "" {
		deviceInfo = device.Label(userAgent)
	}
	now := m.nowF().UTC()
	s := &domain.Session{
		UserID:         userID,
		SessionToken:   sessionToken,
		DeviceInfo:     deviceInfo,
		UserAgent:      userAgent,
		LoggedInAt:     now,
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := m.sessions.Replace(ctx, s); err != nil {
		return nil, err
	}
	if m.auditLog != nil {
		m.auditLog.LogEvent(ctx, userID, "session.announce", "session", deviceInfo)
	}
	return s, nil
}

// GetActive returns the account's active session, or nil if none.
func (m *LifecycleManager) GetActive(ctx context.Context, userID string) (*domain.Session, error) {
	return m.sessions.GetActive(ctx, userID)
}

// IsCurrentSessionActive reports whether the caller's token still holds the
// account's session slot. A false result means the device was superseded or
// logged out and should drop its local state.
func (m *LifecycleManager) IsCurrentSessionActive(ctx context.Context, userID, sessionToken string) (bool, error) {
	if sessionToken == "" {
		return false, nil
	}
	active, err := m.sessions.IsActive(ctx, userID, sessionToken)
	if err != nil {
		return false, err
	}
	if active {
		if err := m.sessions.UpdateLastActivity(ctx, userID, m.nowF().UTC()); err != nil {
			return true, nil
		}
	}
	return active, nil
}

// DeactivateAll ends the account's session regardless of which device holds it.
func (m *LifecycleManager) DeactivateAll(ctx context.Context, userID string) error {
	if err := m.sessions.DeactivateAll(ctx, userID); err != nil {
		return err
	}
	if m.auditLog != nil {
		m.auditLog.LogEvent(ctx, userID, "session.deactivate_all", "session", "")
	}
	return nil
}

// DeactivateCurrent ends the session only if the caller's token still holds
// it. A stale token is a no-op so a superseded device cannot kick the new one.
func (m *LifecycleManager) DeactivateCurrent(ctx context.Context, userID, sessionToken string) error {
	if sessionToken == "" {
		return ErrMissingToken
	}
	if err := m.sessions.DeactivateOne(ctx, userID, sessionToken); err != nil {
		return err
	}
	if m.auditLog != nil {
		m.auditLog.LogEvent(ctx, userID, "session.deactivate_current", "session", "")
	}
	return nil
}
