package middleware

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MarkJaven/thodemy-sub002/internal/telemetry"
	"github.com/MarkJaven/thodemy-sub002/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode string `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry returns a gin middleware that emits a telemetry event after each
// request. Best-effort: failures are logged and do not fail the request. If
// emitter is nil, the middleware no-ops. skipPaths is the set of paths to not
// emit (e.g. the health check).
func Telemetry(emitter telemetry.EventEmitter, skipPaths map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if emitter == nil || skipPaths[c.FullPath()] {
			return
		}
		meta := httpRequestMetadata{
			Method:     c.Request.Method,
			Path:       c.FullPath(),
			StatusCode: strconv.Itoa(c.Writer.Status()),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
		}
		metaJSON, _ := json.Marshal(meta)
		userID, _ := GetUserID(c.Request.Context())
		deviceID, _ := GetDeviceID(c.Request.Context())
		telemetry.EmitAsync(emitter, c.Request.Context(), &domain.Event{
			UserID:    userID,
			DeviceID:  deviceID,
			EventType: "http_request",
			Source:    "http_middleware",
			Metadata:  metaJSON,
			CreatedAt: time.Now().UTC(),
		})
	}
}
