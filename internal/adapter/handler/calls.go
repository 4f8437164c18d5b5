package handler

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/inkaso/callqa/errors"
	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/usecase/calls"
)

// RecordingFetcher downloads a recording from the call platform
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, activityName string) ([]byte, string, error)
}

// Calls exposes the call list and the manual pipeline controls
type Calls struct {
	service    *calls.Service
	recordings RecordingFetcher
	logger     *zap.Logger
}

// NewCalls creates a new calls handler
func NewCalls(service *calls.Service, recordings RecordingFetcher, logger *zap.Logger) *Calls {
	return &Calls{service: service, recordings: recordings, logger: logger}
}

// List returns a page of calls
func (h *Calls) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.service.List(c.Request().Context(), page, limit)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, result)
}

// Get returns one call
func (h *Calls) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid call id"))
	}

	call, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, call)
}

// GetTranscript returns the transcript of one call
func (h *Calls) GetTranscript(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid call id"))
	}

	call, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	transcript, err := h.service.GetTranscript(c.Request().Context(), call.CallID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, transcript)
}

// GetRecording streams the call's audio from the platform
func (h *Calls) GetRecording(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid call id"))
	}

	call, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	audio, contentType, err := h.recordings.FetchRecording(c.Request().Context(), call.ActivityName)
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInternal(err))
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return c.Blob(200, contentType, audio)
}

// Retry requeues a failed call
func (h *Calls) Retry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid call id"))
	}

	if err := h.service.Retry(c.Request().Context(), id); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, nil)
}

// Reprocess reruns the whole pipeline for a call
func (h *Calls) Reprocess(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid call id"))
	}

	if err := h.service.Reprocess(c.Request().Context(), id); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, nil)
}

// ClearAnalysis removes a call's analysis and downgrades it to transcribed
func (h *Calls) ClearAnalysis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument("invalid call id"))
	}

	if err := h.service.ClearAnalysis(c.Request().Context(), id); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, nil)
}

type editAnswerRequest struct {
	Answer        string `json:"answer" validate:"required"`
	Justification string `json:"justification"`
}

// EditAnswer changes one answer in a stored analysis
func (h *Calls) EditAnswer(c echo.Context) error {
	callID := c.Param("callId")
	questionID := c.Param("questionId")

	var req editAnswerRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument(err.Error()))
	}

	if err := h.service.EditAnswer(c.Request().Context(), callID, questionID, req.Answer, req.Justification); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, nil)
}

type humanReviewRequest struct {
	ReviewID     string              `json:"review_id" validate:"required"`
	ActivityName string              `json:"activity_name"`
	Answers      map[string][]string `json:"answers" validate:"required"`
	ReviewedAt   *string             `json:"reviewed_at"`
	ReviewedBy   *string             `json:"reviewed_by"`
}

// SaveHumanReview stores a reviewer's answer sheet
func (h *Calls) SaveHumanReview(c echo.Context) error {
	callID := c.Param("callId")

	var req humanReviewRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, apperrors.ErrInvalidArgument(err.Error()))
	}

	review := entities.HumanReview{
		ReviewID:     req.ReviewID,
		ActivityName: req.ActivityName,
		Answers:      req.Answers,
		ReviewedAt:   req.ReviewedAt,
		ReviewedBy:   req.ReviewedBy,
	}
	if err := h.service.SaveHumanReview(c.Request().Context(), callID, review); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, nil)
}
