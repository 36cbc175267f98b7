package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	approvaldomain "github.com/MarkJaven/thodemy-sub002/internal/approval/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/server/middleware"
	"github.com/MarkJaven/thodemy-sub002/internal/session/domain"
	"github.com/MarkJaven/thodemy-sub002/internal/session/service"
)

type stubSessionRepo struct {
	slot *domain.Session
}

func (s *stubSessionRepo) Replace(ctx context.Context, sess *domain.Session) error {
	cp := *sess
	s.slot = &cp
	return nil
}

func (s *stubSessionRepo) GetActive(ctx context.Context, userID string) (*domain.Session, error) {
	if s.slot == nil || !s.slot.IsActive || s.slot.UserID != userID {
		return nil, nil
	}
	cp := *s.slot
	return &cp, nil
}

func (s *stubSessionRepo) IsActive(ctx context.Context, userID, token string) (bool, error) {
	return s.slot != nil && s.slot.IsActive && s.slot.UserID == userID && s.slot.SessionToken == token, nil
}

func (s *stubSessionRepo) DeactivateAll(ctx context.Context, userID string) error {
	if s.slot != nil && s.slot.UserID == userID {
		s.slot.IsActive = false
	}
	return nil
}

func (s *stubSessionRepo) DeactivateOne(ctx context.Context, userID, token string) error {
	if s.slot != nil && s.slot.UserID == userID && s.slot.SessionToken == token {
		s.slot.IsActive = false
	}
	return nil
}

func (s *stubSessionRepo) UpdateLastActivity(ctx context.Context, userID string, at time.Time) error {
	if s.slot != nil && s.slot.UserID == userID {
		s.slot.LastActivityAt = at
	}
	return nil
}

type stubApprovals struct{}

func (stubApprovals) Request(ctx context.Context, userID, deviceID, deviceLabel string) (*approvaldomain.Request, bool, error) {
	return &approvaldomain.Request{ID: "req-1", UserID: userID, RequestingDeviceID: deviceID, Status: approvaldomain.StatusPending}, true, nil
}

type stubWaiter struct{ status approvaldomain.Status }

func (s stubWaiter) Await(ctx context.Context, userID, requestID string) (approvaldomain.Status, error) {
	return s.status, nil
}

func asUser(userID, deviceID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := middleware.WithIdentity(c.Request.Context(), userID, deviceID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(t *testing.T, repo *stubSessionRepo, decision approvaldomain.Status, userID, deviceID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	lifecycle := service.NewLifecycleManager(repo, stubApprovals{}, stubWaiter{status: decision}, nil)
	h := NewHandler(lifecycle)
	r := gin.New()
	grp := r.Group("/v1", asUser(userID, deviceID))
	h.Register(grp)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreate_FreeSlot(t *testing.T) {
	repo := &stubSessionRepo{}
	r := newTestRouter(t, repo, approvaldomain.StatusApproved, "u1", "tok-a")

	w := doJSON(t, r, http.MethodPost, "/v1/session/create", `{"device_id":"tok-a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if repo.slot == nil || repo.slot.SessionToken != "tok-a" {
		t.Errorf("stored slot = %+v", repo.slot)
	}
}

func TestCreate_ApprovedTakeover(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusApproved, "u1", "tok-b")

	w := doJSON(t, r, http.MethodPost, "/v1/session/create", `{"device_id":"tok-b"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if repo.slot.SessionToken != "tok-b" {
		t.Errorf("slot token = %q, want tok-b", repo.slot.SessionToken)
	}
}

func TestCreate_DeniedGets403(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusDenied, "u1", "tok-b")

	w := doJSON(t, r, http.MethodPost, "/v1/session/create", `{"device_id":"tok-b"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if repo.slot.SessionToken != "tok-a" || !repo.slot.IsActive {
		t.Errorf("slot = %+v, must stay with tok-a", repo.slot)
	}
}

func TestCreate_TimeoutGets408(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusTimeout, "u1", "tok-b")

	w := doJSON(t, r, http.MethodPost, "/v1/session/create", `{"device_id":"tok-b"}`)
	if w.Code != http.StatusRequestTimeout {
		t.Errorf("status = %d, want 408", w.Code)
	}
}

func TestCreate_UnknownGets409(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusUnknown, "u1", "tok-b")

	w := doJSON(t, r, http.MethodPost, "/v1/session/create", `{"device_id":"tok-b"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestCreate_MissingDeviceID(t *testing.T) {
	r := newTestRouter(t, &stubSessionRepo{}, approvaldomain.StatusApproved, "u1", "tok-a")

	w := doJSON(t, r, http.MethodPost, "/v1/session/create", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAnnounce(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusDenied, "u1", "tok-b")

	w := doJSON(t, r, http.MethodPost, "/v1/session/announce", `{"device_id":"tok-b","device_info":"Safari on macOS"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if repo.slot.SessionToken != "tok-b" {
		t.Errorf("announce must replace the slot, got %+v", repo.slot)
	}
}

func TestDeactivateAll(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusApproved, "u1", "tok-a")

	w := doJSON(t, r, http.MethodPost, "/v1/session/deactivate/all", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if repo.slot.IsActive {
		t.Error("slot should be inactive")
	}
}

func TestDeactivateCurrent_StaleToken(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-b", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusApproved, "u1", "tok-a")

	w := doJSON(t, r, http.MethodPost, "/v1/session/deactivate/current", `{"device_id":"tok-a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !repo.slot.IsActive {
		t.Error("stale token must not end the current holder's session")
	}
}

func TestActive_SelfCheck(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-a", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusApproved, "u1", "tok-a")

	req := httptest.NewRequest(http.MethodGet, "/v1/session/active", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"current_device_active":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestActive_SupersededDevice(t *testing.T) {
	repo := &stubSessionRepo{slot: &domain.Session{UserID: "u1", SessionToken: "tok-b", IsActive: true}}
	r := newTestRouter(t, repo, approvaldomain.StatusApproved, "u1", "tok-a")

	req := httptest.NewRequest(http.MethodGet, "/v1/session/active", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"current_device_active":false`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "tok-b") {
		t.Errorf("body should include the holding session, got %s", w.Body.String())
	}
}
