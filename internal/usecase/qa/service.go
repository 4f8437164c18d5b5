// Package qa runs rubric-based LLM analysis over stored transcripts and
// commits the verdicts together with the aggregate updates.
package qa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/inkaso/callqa/errors"
	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
	"github.com/inkaso/callqa/internal/usecase/stats"
	"github.com/inkaso/callqa/pkg/ai"
)

// ErrAllQuestionsFailed signals that no question produced a usable
// answer; the call must be failed even though the analysis was stored.
var ErrAllQuestionsFailed = errors.New("all questions failed analysis - content may be blocked by safety filters")

// AnswerGenerator produces one structured answer per prompt pair
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, systemPrompt, userPrompt string) (*ai.QaAnswer, error)
}

// Options tunes the per-question retry loop
type Options struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxConcurrent int
}

// Service evaluates transcripts against their question group
type Service struct {
	questionRepo   repositories.QuestionRepository
	agentRepo      repositories.AgentRepository
	transcriptRepo repositories.TranscriptRepository
	transactor     repositories.Transactor
	maintainer     *stats.Maintainer
	llm            AnswerGenerator
	opts           Options
	logger         *zap.Logger
}

// NewService creates a QA analysis service
func NewService(
	questionRepo repositories.QuestionRepository,
	agentRepo repositories.AgentRepository,
	transcriptRepo repositories.TranscriptRepository,
	transactor repositories.Transactor,
	maintainer *stats.Maintainer,
	llm AnswerGenerator,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 5 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		questionRepo:   questionRepo,
		agentRepo:      agentRepo,
		transcriptRepo: transcriptRepo,
		transactor:     transactor,
		maintainer:     maintainer,
		llm:            llm,
		opts:           opts,
		logger:         logger,
	}
}

// Analyze evaluates every active question of the call's group against
// its transcript and stores the full result set atomically with the
// aggregate updates. Questions that fail for good get the Error
// sentinel; when every question fails, the stored analysis is kept and
// ErrAllQuestionsFailed is returned.
func (s *Service) Analyze(ctx context.Context, call *entities.CallRecord) error {
	if call.QuestionGroupID == nil {
		return apperrors.ErrGroupNotFound("")
	}

	group, err := s.questionRepo.GetGroup(ctx, *call.QuestionGroupID)
	if err != nil {
		return err
	}
	if group == nil {
		return apperrors.ErrGroupNotFound(call.QuestionGroupID.String())
	}

	questions, err := s.questionRepo.ListActiveByGroup(ctx, *call.QuestionGroupID)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no active questions found for group %s", group.Name)
	}

	transcript, err := s.transcriptRepo.GetByCallID(ctx, call.CallID)
	if err != nil {
		return err
	}
	if transcript == nil {
		return apperrors.ErrTranscriptNotFound(call.CallID)
	}

	formatted := transcript.Text
	if len(transcript.Utterances) > 0 {
		formatted = FormatDialog(transcript.Utterances)
	}

	agentName := ""
	if call.AgentID != nil {
		agent, err := s.agentRepo.GetByID(ctx, *call.AgentID)
		if err != nil {
			return err
		}
		if agent != nil {
			agentName = agent.DisplayName
		}
	}

	systemPrompt := BuildSystemPrompt(group.SystemPrompt, agentName)

	s.logger.Info("🧠 Analyzing call",
		zap.String("call_id", call.CallID),
		zap.String("group", group.Name),
		zap.Int("questions", len(questions)),
	)

	results := make([]entities.QaResult, len(questions))
	sem := make(chan struct{}, s.opts.MaxConcurrent)
	var wg sync.WaitGroup
	for i := range questions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.answerQuestion(ctx, systemPrompt, formatted, &questions[i])
		}(i)
	}
	wg.Wait()

	analysis := &entities.QaAnalysis{
		CompletedAt: time.Now(),
		Results:     results,
	}

	err = s.transactor.Atomically(ctx, func(store repositories.StatsStore) error {
		// Re-analysis must not double count: undo the previous run first
		if err := s.maintainer.Revert(ctx, store, call.CallID); err != nil {
			return err
		}
		if err := store.SaveQaAnalysis(ctx, call.CallID, analysis); err != nil {
			return err
		}
		return s.maintainer.Apply(ctx, store, call.CallID, results)
	})
	if err != nil {
		return apperrors.ErrDBTransaction(err)
	}

	errorCount := analysis.ErrorCount()
	s.logger.Info("✅ Analysis stored",
		zap.String("call_id", call.CallID),
		zap.Int("questions", len(results)),
		zap.Int("errors", errorCount),
	)

	if errorCount == len(results) && len(results) > 0 {
		return ErrAllQuestionsFailed
	}
	return nil
}

// answerQuestion runs the retry loop for one question. It never returns
// an error: unanswerable questions resolve to the Error sentinel.
func (s *Service) answerQuestion(ctx context.Context, systemPrompt, transcript string, question *entities.Question) entities.QaResult {
	result := entities.QaResult{
		QuestionID: question.QuestionID,
		Question:   question.Question,
	}

	userPrompt := BuildUserPrompt(transcript, question)

	answer, err := s.generateWithRetry(ctx, systemPrompt, userPrompt, question.QuestionID)
	if err != nil {
		s.logger.Warn("❌ Question failed analysis",
			zap.String("question_id", question.QuestionID),
			zap.Error(err),
		)
		result.Answer = entities.AnswerError
		result.Justification = fmt.Sprintf("Failed to analyze: %s", err.Error())
		return result
	}

	result.Answer = answer.Answer
	result.Justification = answer.Justification
	return result
}

func (s *Service) generateWithRetry(ctx context.Context, systemPrompt, userPrompt, questionID string) (*ai.QaAnswer, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		answer, err := s.llm.GenerateAnswer(ctx, systemPrompt, userPrompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if ai.IsContentBlocked(err) {
			return nil, errors.New("Content blocked by safety filters (PROHIBITED_CONTENT)")
		}
		if !ai.IsRetryable(err) || attempt == s.opts.MaxAttempts {
			return nil, err
		}

		delay := s.opts.BaseDelay << (attempt - 1)
		if ai.IsRateLimited(err) {
			if hint := ai.RetryDelayHint(err); hint > 0 {
				delay = hint
			}
		}

		s.logger.Info("🔁 Retrying question",
			zap.String("question_id", questionID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.MaxAttempts),
			zap.Duration("delay", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
