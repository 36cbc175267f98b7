// Package client is the device-side API client for the session service. It
// owns the persistent device identity and speaks the approval protocol's
// client half: login, decision handling for incoming requests, and the
// active-session self-check.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkJaven/thodemy-sub002/internal/device"
)

// Sentinel errors mapped from the server's HTTP status codes.
var (
	ErrDenied        = errors.New("login rejected by the active device")
	ErrTimeout       = errors.New("login approval timed out")
	ErrIndeterminate = errors.New("login approval did not complete")
	ErrUnauthorized  = errors.New("access token rejected")
	ErrNotFound      = errors.New("not found")
)

// Session mirrors the server's session view.
type Session struct {
	UserID         string    `json:"user_id"`
	DeviceID       string    `json:"device_id"`
	DeviceInfo     string    `json:"device_info"`
	LoggedInAt     time.Time `json:"logged_in_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// PendingRequest mirrors the server's approval request view.
type PendingRequest struct {
	RequestID   string `json:"request_id"`
	DeviceID    string `json:"device_id"`
	DeviceLabel string `json:"device_label"`
	Status      string `json:"status"`
}

// Client talks to one server on behalf of one device. The device id comes
// from the persistent identity and is stable across restarts.
type Client struct {
	baseURL  string
	token    string
	identity *device.Identity
	http     *http.Client
}

// New returns a Client for baseURL authenticating with the given access
// token. statePath locates the device identity file.
func New(baseURL, token, statePath string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		identity: device.NewIdentity(statePath),
		http:     &http.Client{},
	}
}

// DeviceID returns this installation's persistent device id.
func (c *Client) DeviceID() string {
	return c.identity.DeviceID()
}

// Login claims the account's session slot for this device. Blocks while the
// server mediates approval when another device holds the slot.
func (c *Client) Login(ctx context.Context, deviceInfo string) (*Session, error) {
	var resp struct {
		Session Session `json:"session"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/session/create", map[string]string{
		"device_id":   c.DeviceID(),
		"device_info": deviceInfo,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// Logout ends this device's session. A stale device id is a server-side no-op.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/session/deactivate/current", map[string]string{
		"device_id": c.DeviceID(),
	}, nil)
}

// LogoutAll ends the account's session regardless of which device holds it.
func (c *Client) LogoutAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/session/deactivate/all", map[string]string{}, nil)
}

// Active reports whether this device still holds the session slot and the
// account's current session if any.
func (c *Client) Active(ctx context.Context) (bool, *Session, error) {
	var resp struct {
		CurrentDeviceActive bool     `json:"current_device_active"`
		Session             *Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/session/active", nil, &resp); err != nil {
		return false, nil, err
	}
	return resp.CurrentDeviceActive, resp.Session, nil
}

// Pending returns the account's pending approval request, or nil.
func (c *Client) Pending(ctx context.Context) (*PendingRequest, error) {
	var resp struct {
		Request *PendingRequest `json:"request"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/approval/pending", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Request, nil
}

// Resolve answers a pending request. action must be "approved" or "denied";
// the server only accepts it from the active session holder.
func (c *Client) Resolve(ctx context.Context, requestID, action string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/approval/resolve", map[string]string{
		"request_id": requestID,
		"action":     action,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrDenied
	case code == http.StatusRequestTimeout:
		return ErrTimeout
	case code == http.StatusConflict:
		return ErrIndeterminate
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("server returned %d", code)
	}
}
