package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/inkaso/callqa/errors"
	"github.com/inkaso/callqa/internal/domain/repositories"
	"github.com/inkaso/callqa/internal/usecase/stats"
)

// Stats serves the read-side aggregate queries
type Stats struct {
	reports   *stats.ReportService
	agentRepo repositories.AgentRepository
	logger    *zap.Logger
}

// NewStats creates a new stats handler
func NewStats(reports *stats.ReportService, agentRepo repositories.AgentRepository, logger *zap.Logger) *Stats {
	return &Stats{reports: reports, agentRepo: agentRepo, logger: logger}
}

// ListAgents returns all known agents
func (h *Stats) ListAgents(c echo.Context) error {
	agents, err := h.agentRepo.List(c.Request().Context())
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrDBQuery(err))
	}
	return HandleSuccess(h.logger, c, agents)
}

// AgentOverview returns per-group rows and totals for one agent
func (h *Stats) AgentOverview(c echo.Context) error {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid agent id"))
	}

	overview, err := h.reports.GetAgentOverview(c.Request().Context(), agentID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, overview)
}

// Ranking returns agents sorted by average score
func (h *Stats) Ranking(c echo.Context) error {
	ranking, err := h.reports.ListAgentRanking(c.Request().Context())
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, ranking)
}

// QuestionPerformance returns per-question pass rates for a group,
// worst first
func (h *Stats) QuestionPerformance(c echo.Context) error {
	groupID, err := uuid.Parse(c.QueryParam("group_id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("group_id query parameter is required"))
	}

	performance, err := h.reports.GetQuestionPerformance(c.Request().Context(), groupID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, performance)
}

// Dashboard returns the overall summary with the worst questions
func (h *Stats) Dashboard(c echo.Context) error {
	summary, err := h.reports.GetDashboardSummary(c.Request().Context())
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, summary)
}
