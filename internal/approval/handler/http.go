// Package handler exposes the approval request lifecycle over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/approval/service"
	"github.com/MarkJaven/thodemy-sub002/internal/notify"
	"github.com/MarkJaven/thodemy-sub002/internal/server/middleware"
)

// Handler serves the approval HTTP routes. The notify channel backs the SSE
// stream; a nil channel disables it with 503.
type Handler struct {
	service *service.Service
	channel notify.Channel
}

// NewHandler returns an approval HTTP handler.
func NewHandler(svc *service.Service, channel notify.Channel) *Handler {
	return &Handler{service: svc, channel: channel}
}

// Register mounts the approval routes on rg. rg must already carry the auth
// middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/approval/request", h.request)
	rg.POST("/approval/resolve", h.resolve)
	rg.GET("/approval/pending", h.pending)
	rg.GET("/approval/status/:request_id", h.status)
	rg.GET("/approval/events", h.events)
}

type requestBody struct {
	DeviceID    string `json:"device_id" binding:"required"`
	DeviceLabel string `json:"device_label"`
}

type resolveBody struct {
	RequestID string `json:"request_id" binding:"required"`
	Action    string `json:"action" binding:"required"`
}

type requestView struct {
	RequestID   string     `json:"request_id"`
	UserID      string     `json:"user_id"`
	DeviceID    string     `json:"device_id"`
	DeviceLabel string     `json:"device_label"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toView(req *domain.Request) requestView {
	return requestView{
		RequestID:   req.ID,
		UserID:      req.UserID,
		DeviceID:    req.RequestingDeviceID,
		DeviceLabel: req.RequestingDeviceLabel,
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		ResolvedAt:  req.ResolvedAt,
	}
}

func (h *Handler) request(c *gin.Context) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	var body requestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	req, _, err := h.service.Request(c.Request.Context(), userID, body.DeviceID, body.DeviceLabel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": req.ID, "status": string(req.Status)})
}

func (h *Handler) resolve(c *gin.Context) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	deviceID, _ := middleware.GetDeviceID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	var body resolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_id and action required"})
		return
	}
	status, err := h.service.Resolve(c.Request.Context(), userID, deviceID, body.RequestID, domain.Status(body.Action))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

func (h *Handler) pending(c *gin.Context) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	req, err := h.service.Pending(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusOK, gin.H{"request": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": toView(req)})
}

func (h *Handler) status(c *gin.Context) {
	requestID := c.Param("request_id")
	status, err := h.service.Status(c.Request.Context(), requestID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

// events streams decision events for the caller's account as SSE. The stream
// ends when the client disconnects or the channel closes the subscription.
func (h *Handler) events(c *gin.Context) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if h.channel == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	sub, err := h.channel.Subscribe(userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	defer sub.Unsubscribe()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-sub.Events():
			if !open {
				return false
			}
			c.SSEvent("decision", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// writeError maps service errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotSessionHolder):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidDecision), errors.Is(err, service.ErrMissingDevice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	}
}
