package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
	"github.com/inkaso/callqa/internal/infrastructure/cache"
	"github.com/inkaso/callqa/internal/usecase/qa"
	"github.com/inkaso/callqa/pkg/config"
	"github.com/inkaso/callqa/pkg/workpool"
)

const (
	tickLockKey    = "callqa:pipeline:tick"
	staleScanLimit = 50
)

// Transcriber produces and stores a transcript for a call.
type Transcriber interface {
	Transcribe(ctx context.Context, call *entities.CallRecord, force bool) (*entities.Transcript, bool, error)
}

// Analyzer runs the QA analysis for a transcribed call.
type Analyzer interface {
	Analyze(ctx context.Context, call *entities.CallRecord) error
}

// Scheduler drives calls through the processing pipeline. Each tick claims
// batches of pending calls, hands them to the worker pools and recovers
// jobs that went stale after a crash or restart.
type Scheduler struct {
	callRepo      repositories.CallRepository
	transcriber   Transcriber
	analyzer      Analyzer
	transcription *workpool.Pool
	analysis      *workpool.Pool
	locker        cache.Locker
	cfg           config.PipelineConfig
	logger        *zap.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewScheduler(
	callRepo repositories.CallRepository,
	transcriber Transcriber,
	analyzer Analyzer,
	transcriptionPool *workpool.Pool,
	analysisPool *workpool.Pool,
	locker cache.Locker,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) *Scheduler {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	return &Scheduler{
		callRepo:      callRepo,
		transcriber:   transcriber,
		analyzer:      analyzer,
		transcription: transcriptionPool,
		analysis:      analysisPool,
		locker:        locker,
		cfg:           cfg,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the periodic tick loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.logger.Info("👷 Pipeline scheduler started",
			zap.Duration("interval", s.cfg.Interval),
			zap.Int("batch_size", s.cfg.BatchSize))

		for {
			select {
			case <-ticker.C:
				if err := s.Tick(context.Background()); err != nil {
					s.logger.Error("❌ Pipeline tick failed", zap.Error(err))
				}
			case <-s.stopChan:
				s.logger.Info("🛑 Pipeline scheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the tick loop. In-flight jobs keep running until their pools
// are shut down.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	s.wg.Wait()
}

// Tick runs one pipeline pass: enqueue transcriptions, enqueue analyses,
// recover stale jobs. Safe to call concurrently across instances because
// every status transition is a guarded update.
func (s *Scheduler) Tick(ctx context.Context) error {
	acquired, err := s.locker.TryAcquire(ctx, tickLockKey, s.cfg.Interval)
	if err != nil {
		return fmt.Errorf("failed to acquire pipeline lock: %w", err)
	}
	if !acquired {
		s.logger.Debug("⏭️ Pipeline tick skipped, another instance holds the lock")
		return nil
	}

	if err := s.enqueueTranscriptions(ctx); err != nil {
		return err
	}
	if err := s.enqueueAnalyses(ctx); err != nil {
		return err
	}
	return s.recoverStale(ctx)
}

func (s *Scheduler) enqueueTranscriptions(ctx context.Context) error {
	calls, err := s.callRepo.ListByStatus(ctx, entities.StatusSynced, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list synced calls: %w", err)
	}

	for i := range calls {
		call := calls[i]
		claimed, err := s.callRepo.Transition(ctx, call.ID, entities.StatusSynced, entities.StatusTranscribing)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}

		s.logger.Info("🎙️ Queueing transcription",
			zap.String("call_id", call.CallID),
			zap.String("id", call.ID.String()))

		if err := s.transcription.Submit(workpool.Job{
			ID: call.CallID,
			Run: func(jobCtx context.Context) error {
				_, _, err := s.transcriber.Transcribe(jobCtx, &call, false)
				return err
			},
			OnComplete: func(doneCtx context.Context, res workpool.Result) {
				s.onTranscriptionComplete(doneCtx, &call, res)
			},
		}); err != nil {
			s.logger.Error("❌ Failed to submit transcription job",
				zap.String("call_id", call.CallID), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) enqueueAnalyses(ctx context.Context) error {
	calls, err := s.callRepo.ListByStatus(ctx, entities.StatusTranscribed, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list transcribed calls: %w", err)
	}

	for i := range calls {
		call := calls[i]

		if call.QuestionGroupID == nil {
			if _, err := s.callRepo.MarkSkipped(ctx, call.ID, "No question group assigned"); err != nil {
				return err
			}
			s.logger.Info("⏭️ Call skipped, no question group",
				zap.String("call_id", call.CallID))
			continue
		}

		claimed, err := s.callRepo.Transition(ctx, call.ID, entities.StatusTranscribed, entities.StatusAnalyzing)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}

		s.logger.Info("🧠 Queueing analysis",
			zap.String("call_id", call.CallID),
			zap.String("id", call.ID.String()))

		if err := s.analysis.Submit(workpool.Job{
			ID: call.CallID,
			Run: func(jobCtx context.Context) error {
				if err := s.analyzer.Analyze(jobCtx, &call); err != nil {
					if errors.Is(err, qa.ErrAllQuestionsFailed) {
						return workpool.Permanent(err)
					}
					return err
				}
				return nil
			},
			OnComplete: func(doneCtx context.Context, res workpool.Result) {
				s.onAnalysisComplete(doneCtx, &call, res)
			},
		}); err != nil {
			s.logger.Error("❌ Failed to submit analysis job",
				zap.String("call_id", call.CallID), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) onTranscriptionComplete(ctx context.Context, call *entities.CallRecord, res workpool.Result) {
	switch res.Outcome {
	case workpool.OutcomeSuccess:
		if _, err := s.callRepo.Transition(ctx, call.ID, entities.StatusTranscribing, entities.StatusTranscribed); err != nil {
			s.logger.Error("❌ Failed to mark call transcribed",
				zap.String("call_id", call.CallID), zap.Error(err))
			return
		}
		s.logger.Info("✅ Transcription completed", zap.String("call_id", call.CallID))
	case workpool.OutcomeFailed:
		message := "Transcription failed: " + FormatPipelineError(res.Err.Error())
		if _, err := s.callRepo.MarkFailed(ctx, call.ID, entities.StatusTranscribing, message); err != nil {
			s.logger.Error("❌ Failed to mark call failed",
				zap.String("call_id", call.CallID), zap.Error(err))
			return
		}
		s.logger.Error("❌ Transcription failed",
			zap.String("call_id", call.CallID), zap.Error(res.Err))
	case workpool.OutcomeCancelled:
		// Roll back so the next tick picks the call up again.
		if _, err := s.callRepo.Transition(ctx, call.ID, entities.StatusTranscribing, entities.StatusSynced); err != nil {
			s.logger.Error("❌ Failed to requeue cancelled transcription",
				zap.String("call_id", call.CallID), zap.Error(err))
			return
		}
		s.logger.Warn("🔄 Transcription cancelled, requeued", zap.String("call_id", call.CallID))
	}
}

func (s *Scheduler) onAnalysisComplete(ctx context.Context, call *entities.CallRecord, res workpool.Result) {
	switch res.Outcome {
	case workpool.OutcomeSuccess:
		if _, err := s.callRepo.Transition(ctx, call.ID, entities.StatusAnalyzing, entities.StatusAnalyzed); err != nil {
			s.logger.Error("❌ Failed to mark call analyzed",
				zap.String("call_id", call.CallID), zap.Error(err))
			return
		}
		s.logger.Info("✅ Analysis completed", zap.String("call_id", call.CallID))
	case workpool.OutcomeFailed:
		message := "Analysis failed: " + FormatPipelineError(res.Err.Error())
		if _, err := s.callRepo.MarkFailed(ctx, call.ID, entities.StatusAnalyzing, message); err != nil {
			s.logger.Error("❌ Failed to mark call failed",
				zap.String("call_id", call.CallID), zap.Error(err))
			return
		}
		s.logger.Error("❌ Analysis failed",
			zap.String("call_id", call.CallID), zap.Error(res.Err))
	case workpool.OutcomeCancelled:
		if _, err := s.callRepo.Transition(ctx, call.ID, entities.StatusAnalyzing, entities.StatusTranscribed); err != nil {
			s.logger.Error("❌ Failed to requeue cancelled analysis",
				zap.String("call_id", call.CallID), zap.Error(err))
			return
		}
		s.logger.Warn("🔄 Analysis cancelled, requeued", zap.String("call_id", call.CallID))
	}
}

func (s *Scheduler) recoverStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.StaleThreshold)

	for _, status := range []entities.ProcessingStatus{entities.StatusTranscribing, entities.StatusAnalyzing} {
		stale, err := s.callRepo.ListStale(ctx, status, cutoff, staleScanLimit)
		if err != nil {
			return fmt.Errorf("failed to list stale calls: %w", err)
		}

		for i := range stale {
			call := stale[i]
			attempts := call.RetryCount + 1

			if call.RetryCount >= s.cfg.StaleRetryLimit {
				message := fmt.Sprintf("Stale job after %d attempts", attempts)
				if _, err := s.callRepo.FailStale(ctx, call.ID, status, message); err != nil {
					return err
				}
				s.logger.Error("🛑 Stale call failed permanently",
					zap.String("call_id", call.CallID),
					zap.String("status", string(status)),
					zap.Int("attempts", attempts))
				continue
			}

			if _, err := s.callRepo.RequeueStale(ctx, call.ID, status); err != nil {
				return err
			}
			s.logger.Warn("🔁 Stale call requeued",
				zap.String("call_id", call.CallID),
				zap.String("status", string(status)),
				zap.Int("attempt", attempts))
		}
	}
	return nil
}
