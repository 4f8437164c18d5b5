package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inkaso/callqa/internal/infrastructure/http/middleware"
	"github.com/inkaso/callqa/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg          *config.Config
	authHandler  *Auth
	callsHandler *Calls
	statsHandler *Stats
	adminHandler *Admin
	auth         *middleware.AuthMiddleware
}

// NewRouter creates a new router with all handlers
func NewRouter(
	cfg *config.Config,
	authHandler *Auth,
	callsHandler *Calls,
	statsHandler *Stats,
	adminHandler *Admin,
	auth *middleware.AuthMiddleware,
) *Router {
	return &Router{
		cfg:          cfg,
		authHandler:  authHandler,
		callsHandler: callsHandler,
		statsHandler: statsHandler,
		adminHandler: adminHandler,
		auth:         auth,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	v1.POST("/auth/login", rt.authHandler.Login)

	api := v1.Group("", rt.auth.Authenticate)
	rt.setupCallRoutes(api)
	rt.setupStatsRoutes(api)
	rt.setupAdminRoutes(api)
}

func (rt *Router) setupCallRoutes(g *echo.Group) {
	callGroup := g.Group("/calls")

	callGroup.GET("", rt.callsHandler.List)
	callGroup.GET("/:id", rt.callsHandler.Get)
	callGroup.GET("/:id/transcript", rt.callsHandler.GetTranscript)
	callGroup.GET("/:id/recording", rt.callsHandler.GetRecording)
	callGroup.POST("/:id/retry", rt.callsHandler.Retry)
	callGroup.POST("/:id/reprocess", rt.callsHandler.Reprocess)
	callGroup.DELETE("/:id/analysis", rt.callsHandler.ClearAnalysis)

	// Answer edits and reviews key on the platform call id, matching the
	// identifiers stored inside qa_analysis.
	g.PUT("/transcripts/:callId/answers/:questionId", rt.callsHandler.EditAnswer)
	g.PUT("/transcripts/:callId/review", rt.callsHandler.SaveHumanReview)
}

func (rt *Router) setupStatsRoutes(g *echo.Group) {
	g.GET("/agents", rt.statsHandler.ListAgents)
	g.GET("/agents/:id/overview", rt.statsHandler.AgentOverview)

	statsGroup := g.Group("/stats")
	statsGroup.GET("/ranking", rt.statsHandler.Ranking)
	statsGroup.GET("/questions", rt.statsHandler.QuestionPerformance)
	statsGroup.GET("/dashboard", rt.statsHandler.Dashboard)
}

func (rt *Router) setupAdminRoutes(g *echo.Group) {
	adminGroup := g.Group("/admin")
	adminGroup.POST("/sync", rt.adminHandler.TriggerSync)
	adminGroup.POST("/pipeline/tick", rt.adminHandler.TriggerTick)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
