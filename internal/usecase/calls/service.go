package calls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/inkaso/callqa/errors"
	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
	"github.com/inkaso/callqa/internal/usecase/stats"
)

// Service exposes the manual controls of the pipeline: listing calls,
// retrying failures, reprocessing, clearing analyses and editing single
// answers. Every mutation that touches an existing analysis reverts its
// statistics contribution inside the same transaction.
type Service struct {
	callRepo       repositories.CallRepository
	transcriptRepo repositories.TranscriptRepository
	transactor     repositories.Transactor
	maintainer     *stats.Maintainer
	logger         *zap.Logger
}

func NewService(
	callRepo repositories.CallRepository,
	transcriptRepo repositories.TranscriptRepository,
	transactor repositories.Transactor,
	maintainer *stats.Maintainer,
	logger *zap.Logger,
) *Service {
	return &Service{
		callRepo:       callRepo,
		transcriptRepo: transcriptRepo,
		transactor:     transactor,
		maintainer:     maintainer,
		logger:         logger,
	}
}

// ListResult is a page of calls
type ListResult struct {
	Calls      []entities.CallRecord `json:"calls"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}

// List returns calls ordered by call time, newest first
func (s *Service) List(ctx context.Context, page, limit int) (*ListResult, error) {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = 20
	}

	calls, total, err := s.callRepo.List(ctx, limit, page*limit)
	if err != nil {
		return nil, apperrors.ErrDBQuery(err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ListResult{
		Calls:      calls,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// Get returns one call by its database id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entities.CallRecord, error) {
	call, err := s.callRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.ErrDBQuery(err)
	}
	if call == nil {
		return nil, apperrors.ErrCallNotFound(id.String())
	}
	return call, nil
}

// GetByCallID returns one call by its platform call identifier
func (s *Service) GetByCallID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	call, err := s.callRepo.GetByCallID(ctx, callID)
	if err != nil {
		return nil, apperrors.ErrDBQuery(err)
	}
	if call == nil {
		return nil, apperrors.ErrCallNotFound(callID)
	}
	return call, nil
}

// GetTranscript returns the transcript for a call
func (s *Service) GetTranscript(ctx context.Context, callID string) (*entities.Transcript, error) {
	transcript, err := s.transcriptRepo.GetByCallID(ctx, callID)
	if err != nil {
		return nil, apperrors.ErrDBQuery(err)
	}
	if transcript == nil {
		return nil, apperrors.ErrTranscriptNotFound(callID)
	}
	return transcript, nil
}

// Retry requeues a failed call for another pipeline pass
func (s *Service) Retry(ctx context.Context, id uuid.UUID) error {
	call, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.callRepo.RequeueForRetry(ctx, id)
	if err != nil {
		return apperrors.ErrDBQuery(err)
	}
	if !ok {
		return apperrors.ErrCallInvalidState(call.CallID, string(call.ProcessingStatus), string(entities.StatusFailed))
	}

	s.logger.Info("🔄 Call requeued for retry", zap.String("call_id", call.CallID))
	return nil
}

// Reprocess runs an analyzed or failed call through the whole pipeline
// again. Any existing analysis is reverted from the aggregates and cleared
// before the call re-enters the queue.
func (s *Service) Reprocess(ctx context.Context, id uuid.UUID) error {
	call, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if call.ProcessingStatus != entities.StatusAnalyzed && call.ProcessingStatus != entities.StatusFailed {
		return apperrors.ErrCallInvalidState(call.CallID, string(call.ProcessingStatus), "analyzed or failed")
	}

	err = s.transactor.Atomically(ctx, func(store repositories.StatsStore) error {
		if err := s.maintainer.Revert(ctx, store, call.CallID); err != nil {
			return err
		}
		return store.SaveQaAnalysis(ctx, call.CallID, nil)
	})
	if err != nil {
		return apperrors.ErrDBTransaction(err)
	}

	ok, err := s.callRepo.RequeueForReprocess(ctx, id, call.ProcessingStatus)
	if err != nil {
		return apperrors.ErrDBQuery(err)
	}
	if !ok {
		return apperrors.ErrCallInvalidState(call.CallID, "changed", string(call.ProcessingStatus))
	}

	s.logger.Info("🔄 Call requeued for reprocessing", zap.String("call_id", call.CallID))
	return nil
}

// ClearAnalysis reverts and removes a call's analysis and downgrades the
// call back to transcribed so it can be re-analyzed.
func (s *Service) ClearAnalysis(ctx context.Context, id uuid.UUID) error {
	call, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if call.ProcessingStatus != entities.StatusAnalyzed {
		return apperrors.ErrCallInvalidState(call.CallID, string(call.ProcessingStatus), string(entities.StatusAnalyzed))
	}

	err = s.transactor.Atomically(ctx, func(store repositories.StatsStore) error {
		if err := s.maintainer.Revert(ctx, store, call.CallID); err != nil {
			return err
		}
		return store.SaveQaAnalysis(ctx, call.CallID, nil)
	})
	if err != nil {
		return apperrors.ErrDBTransaction(err)
	}

	if _, err := s.callRepo.Transition(ctx, id, entities.StatusAnalyzed, entities.StatusTranscribed); err != nil {
		return apperrors.ErrDBQuery(err)
	}

	s.logger.Info("🗑️ Analysis cleared", zap.String("call_id", call.CallID))
	return nil
}

// EditAnswer changes one answer in a stored analysis and adjusts the
// aggregates for the difference. The transcript write and the statistics
// deltas commit together.
func (s *Service) EditAnswer(ctx context.Context, callID, questionID, answer, justification string) error {
	err := s.transactor.Atomically(ctx, func(store repositories.StatsStore) error {
		transcript, err := store.GetTranscriptByCallID(ctx, callID)
		if err != nil {
			return err
		}
		if transcript == nil || transcript.QaAnalysis == nil {
			return apperrors.ErrAnalysisNotFound(callID)
		}

		analysis := transcript.QaAnalysis
		idx := -1
		for i := range analysis.Results {
			if analysis.Results[i].QuestionID == questionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.ErrQuestionNotFound(questionID)
		}

		oldAnswer := analysis.Results[idx].Answer
		analysis.Results[idx].Answer = answer
		analysis.Results[idx].Justification = justification

		updated := entities.QaAnalysis{
			CompletedAt: analysis.CompletedAt,
			Results:     analysis.Results,
		}
		if err := store.SaveQaAnalysis(ctx, callID, &updated); err != nil {
			return err
		}

		return s.maintainer.ApplyAnswerEdit(ctx, store, callID, questionID, oldAnswer, answer)
	})
	if err != nil {
		return err
	}

	s.logger.Info("✏️ Answer edited",
		zap.String("call_id", callID),
		zap.String("question_id", questionID))
	return nil
}

// SaveHumanReview stores a reviewer's answer sheet on the transcript
func (s *Service) SaveHumanReview(ctx context.Context, callID string, review entities.HumanReview) error {
	if review.Answers == nil {
		return apperrors.ErrInvalidArgument("review answers are required")
	}
	for questionID, answers := range review.Answers {
		if questionID == "" || len(answers) == 0 {
			return apperrors.ErrInvalidArgument("review answers must map question ids to non-empty lists")
		}
	}
	review.FetchedAt = time.Now().UTC()

	if err := s.transcriptRepo.SaveHumanReview(ctx, callID, review); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTranscriptNotFound(callID)
		}
		return apperrors.ErrDBQuery(err)
	}

	s.logger.Info("📋 Human review saved", zap.String("call_id", callID))
	return nil
}
