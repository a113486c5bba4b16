package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Auremas/voxanalyze-mvp/internal/infrastructure/http/middleware"
	"github.com/Auremas/voxanalyze-mvp/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg         *config.Config
	auth        *middleware.AuthMiddleware
	callHandler *Call
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, auth *middleware.AuthMiddleware, callHandler *Call) *Router {
	return &Router{
		cfg:         cfg,
		auth:        auth,
		callHandler: callHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	rt.setupCallRoutes(v1)
}

// setupCallRoutes configures call recording routes
func (rt *Router) setupCallRoutes(g *echo.Group) {
	callGroup := g.Group("/calls", rt.auth.Authenticate())

	callGroup.POST("", rt.callHandler.Upload)
	callGroup.GET("", rt.callHandler.List)
	callGroup.GET("/:id", rt.callHandler.Get)
	callGroup.GET("/:id/transcript", rt.callHandler.GetTranscript)
	callGroup.GET("/:id/audio", rt.callHandler.GetAudio)
	callGroup.DELETE("/:id", rt.callHandler.Delete)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
