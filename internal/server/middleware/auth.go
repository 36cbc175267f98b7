package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MarkJaven/thodemy-sub002/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns a gin middleware that validates the Bearer (access) token and
// sets user_id and device_id in the request context for protected routes.
// The client IP is recorded alongside so the audit logger can read it.
func Auth(tokens *security.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
			return
		}
		userID, deviceID, err := tokens.ValidateAccess(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
			return
		}
		ctx := WithIdentity(c.Request.Context(), userID, deviceID)
		ctx = WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// extractBearer returns the Bearer token from the Authorization header value,
// or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
