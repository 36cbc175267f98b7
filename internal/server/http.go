// Package server assembles the gin engine: middleware chain, route groups,
// and the health endpoint.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	approvalhandler "github.com/MarkJaven/thodemy-sub002/internal/approval/handler"
	"github.com/MarkJaven/thodemy-sub002/internal/security"
	"github.com/MarkJaven/thodemy-sub002/internal/server/middleware"
	sessionhandler "github.com/MarkJaven/thodemy-sub002/internal/session/handler"
	"github.com/MarkJaven/thodemy-sub002/internal/telemetry"
)

// Pinger reports store reachability for the health endpoint (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the handler dependencies for the HTTP server.
type Deps struct {
	// Tokens validates access tokens for all /v1 routes.
	Tokens *security.TokenProvider
	// Approval serves the approval routes. Required.
	Approval *approvalhandler.Handler
	// Session serves the session routes. Required.
	Session *sessionhandler.Handler
	// Emitter receives per-request telemetry events. May be nil.
	Emitter telemetry.EventEmitter
	// Health is pinged by /healthz. May be nil; then /healthz only reports liveness.
	Health Pinger
}

// New builds the gin engine with auth and telemetry middleware on /v1 and a
// public /healthz.
func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Telemetry(deps.Emitter, map[string]bool{"/healthz": true}))

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", middleware.Auth(deps.Tokens))
	deps.Approval.Register(v1)
	deps.Session.Register(v1)
	return r
}
