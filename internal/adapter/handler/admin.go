package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/inkaso/callqa/errors"
	syncsvc "github.com/inkaso/callqa/internal/usecase/sync"
)

// Ticker triggers one pipeline pass on demand
type Ticker interface {
	Tick(ctx context.Context) error
}

// Syncer triggers one ingestion pass on demand
type Syncer interface {
	SyncOnce(ctx context.Context) (*syncsvc.Result, error)
}

// Admin exposes the manual triggers for sync and pipeline
type Admin struct {
	syncer    Syncer
	scheduler Ticker
	logger    *zap.Logger
}

// NewAdmin creates a new admin handler
func NewAdmin(syncer Syncer, scheduler Ticker, logger *zap.Logger) *Admin {
	return &Admin{syncer: syncer, scheduler: scheduler, logger: logger}
}

// TriggerSync runs one sync pass immediately
func (h *Admin) TriggerSync(c echo.Context) error {
	result, err := h.syncer.SyncOnce(c.Request().Context())
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInternal(err))
	}
	return HandleSuccess(h.logger, c, result)
}

// TriggerTick runs one pipeline pass immediately
func (h *Admin) TriggerTick(c echo.Context) error {
	if err := h.scheduler.Tick(c.Request().Context()); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInternal(err))
	}
	return HandleSuccess(h.logger, c, nil)
}
