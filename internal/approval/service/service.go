package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/approval/repository"
	"github.com/MarkJaven/thodemy-sub002/internal/audit"
	"github.com/MarkJaven/thodemy-sub002/internal/notify"
)

// Sentinel errors for the approval service; handlers map them to HTTP codes.
var (
	ErrNotFound         = errors.New("approval request not found")
	ErrNotSessionHolder = errors.New("caller does not hold the active session for this account")
	ErrInvalidDecision  = errors.New("decision must be approved or denied")
	ErrMissingDevice    = errors.New("requesting device id required")
)

// RequestRepo is the minimal approval repository needed by the service.
type RequestRepo interface {
	Create(ctx context.Context, req *domain.Request) (*domain.Request, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	GetPendingByUser(ctx context.Context, userID string) (*domain.Request, error)
	Resolve(ctx context.Context, id string, decision domain.Status) (domain.Status, error)
}

// SessionChecker answers whether a device currently holds the account's
// active session. Used to gate who may resolve a request.
type SessionChecker interface {
	IsActive(ctx context.Context, userID, token string) (bool, error)
}

// Service owns approval request lifecycle on the server side: creation with
// duplicate collapsing, authorized single-winner resolution, status reads,
// and decision fan-out to the push channel.
type Service struct {
	requests RequestRepo
	sessions SessionChecker
	channel  notify.Channel
	auditLog audit.AuditLogger
}

// NewService returns an approval Service. channel and auditLog may be nil;
// both are best-effort side effects.
func NewService(requests RequestRepo, sessions SessionChecker, channel notify.Channel, auditLog audit.AuditLogger) *Service {
	return &Service{
		requests: requests,
		sessions: sessions,
		channel:  channel,
		auditLog: auditLog,
	}
}

// Request creates a pending approval request for the given device, or returns
// the existing pending one for the same (user, device) pair. created reports
// whether a new row was inserted.
func (s *Service) Request(ctx context.Context, userID, deviceID, deviceLabel string) (*domain.Request, bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, false, ErrMissingDevice
	}
	if deviceLabel == "" {
		deviceLabel = "Unknown Device"
	}
	req := &domain.Request{
		ID:                    uuid.New().String(),
		UserID:                userID,
		RequestingDeviceID:    deviceID,
		RequestingDeviceLabel: deviceLabel,
		Status:                domain.StatusPending,
		CreatedAt:             time.Now().UTC(),
	}
	existing, created, err := s.requests.Create(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if created && s.auditLog != nil {
		s.auditLog.LogEvent(ctx, userID, "create", "approval_request", existing.ID)
	}
	return existing, created, nil
}

// Resolve applies the caller's decision to the request. The caller must be
// the account's current active-session holder: the token subject has to match
// the request's user and the caller's device must be the active session
// token. Resolving an already-terminal request returns the stored status
// unchanged.
func (s *Service) Resolve(ctx context.Context, callerUserID, callerDeviceID, requestID string, decision domain.Status) (domain.Status, error) {
	if decision != domain.StatusApproved && decision != domain.StatusDenied {
		return "", ErrInvalidDecision
	}
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req == nil {
		return "", ErrNotFound
	}
	if req.UserID != callerUserID {
		return "", ErrNotSessionHolder
	}
	holds, err := s.sessions.IsActive(ctx, callerUserID, callerDeviceID)
	if err != nil {
		return "", err
	}
	if !holds {
		return "", ErrNotSessionHolder
	}

	status, err := s.requests.Resolve(ctx, requestID, decision)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	// Push the outcome to waiting coordinators. Best-effort and deliberately
	// repeated on duplicate resolves: consumers tolerate duplicates, and a
	// lost first publish is covered by the poll loop anyway.
	if s.channel != nil && status.Terminal() {
		if err := s.channel.Publish(ctx, req.UserID, notify.Event{
			RequestID: requestID,
			Status:    string(status),
		}); err != nil {
			log.Printf("approval: decision push failed for %s: %v", requestID, err)
		}
	}
	if s.auditLog != nil {
		s.auditLog.LogEvent(ctx, callerUserID, "resolve."+string(decision), "approval_request", requestID)
	}
	return status, nil
}

// Status returns the request's current status. Satisfies the coordinator's
// status fetcher.
func (s *Service) Status(ctx context.Context, requestID string) (domain.Status, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req == nil {
		return "", ErrNotFound
	}
	return req.Status, nil
}

// Pending returns the account's oldest pending request, or nil if none.
func (s *Service) Pending(ctx context.Context, userID string) (*domain.Request, error) {
	return s.requests.GetPendingByUser(ctx, userID)
}
