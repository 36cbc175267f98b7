// Package handler exposes the session lifecycle over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarkJaven/thodemy-sub002/internal/server/middleware"
	"github.com/MarkJaven/thodemy-sub002/internal/session/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/session/service"
)

// Handler serves the session HTTP routes.
type Handler struct {
	lifecycle *service.LifecycleManager
}

// NewHandler returns a session HTTP handler.
func NewHandler(lifecycle *service.LifecycleManager) *Handler {
	return &Handler{lifecycle: lifecycle}
}

// Register mounts the session routes on rg. rg must already carry the auth
// middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/session/create", h.create)
	rg.POST("/session/announce", h.announce)
	rg.POST("/session/deactivate/all", h.deactivateAll)
	rg.POST("/session/deactivate/current", h.deactivateCurrent)
	rg.GET("/session/active", h.active)
}

type createBody struct {
	DeviceID   string `json:"device_id" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type deactivateBody struct {
	DeviceID string `json:"device_id" binding:"required"`
}

type sessionView struct {
	UserID         string    `json:"user_id"`
	DeviceID       string    `json:"device_id"`
	DeviceInfo     string    `json:"device_info"`
	LoggedInAt     time.Time `json:"logged_in_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func toView(s *domain.Session) sessionView {
	return sessionView{
		UserID:         s.UserID,
		DeviceID:       s.SessionToken,
		DeviceInfo:     s.DeviceInfo,
		LoggedInAt:     s.LoggedInAt,
		LastActivityAt: s.LastActivityAt,
	}
}

func identity(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
	}
	return userID, ok
}

// create runs the full login lifecycle and blocks until the slot is claimed,
// the holder refuses, or the approval window closes.
func (h *Handler) create(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	s, err := h.lifecycle.CreateSession(c.Request.Context(), userID, body.DeviceID, body.DeviceInfo, c.Request.UserAgent())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": toView(s)})
}

func (h *Handler) announce(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	s, err := h.lifecycle.Announce(c.Request.Context(), userID, body.DeviceID, body.DeviceInfo, c.Request.UserAgent())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": toView(s)})
}

func (h *Handler) deactivateAll(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	if err := h.lifecycle.DeactivateAll(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

func (h *Handler) deactivateCurrent(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var body deactivateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	if err := h.lifecycle.DeactivateCurrent(c.Request.Context(), userID, body.DeviceID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

// active reports whether the caller's device still holds the session slot and
// returns the account's active session if any.
func (h *Handler) active(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	deviceID, _ := middleware.GetDeviceID(c.Request.Context())

	holds, err := h.lifecycle.IsCurrentSessionActive(c.Request.Context(), userID, deviceID)
	if err != nil {
		writeError(c, err)
		return
	}
	s, err := h.lifecycle.GetActive(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"current_device_active": holds}
	if s != nil {
		resp["session"] = toView(s)
	} else {
		resp["session"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps lifecycle errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrApprovalDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrApprovalTimeout):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrApprovalUnknown):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMissingToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	}
}
