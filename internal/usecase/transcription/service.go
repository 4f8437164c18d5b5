// Package transcription turns call recordings into stored transcripts.
package transcription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
	"github.com/inkaso/callqa/internal/infrastructure/external/stt"
	"github.com/inkaso/callqa/internal/infrastructure/storage"
)

// RecordingFetcher downloads call audio from the call platform
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, activityName string) ([]byte, string, error)
}

// RecordingArchive caches downloaded audio between attempts
type RecordingArchive interface {
	Get(ctx context.Context, activityName string) ([]byte, string, error)
	Put(ctx context.Context, activityName string, audio []byte, contentType string) error
	Delete(ctx context.Context, activityName string) error
}

// Transcriber runs speech-to-text on raw audio
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, agentName string) (*stt.Result, error)
}

// Service transcribes calls: fetch the recording, run STT, store the
// transcript. An existing transcript short-circuits unless forced.
type Service struct {
	transcriptRepo repositories.TranscriptRepository
	agentRepo      repositories.AgentRepository
	recordings     RecordingFetcher
	archive        RecordingArchive // nil when archiving is disabled
	transcriber    Transcriber
	logger         *zap.Logger
}

// NewService creates a transcription service
func NewService(
	transcriptRepo repositories.TranscriptRepository,
	agentRepo repositories.AgentRepository,
	recordings RecordingFetcher,
	archive RecordingArchive,
	transcriber Transcriber,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		transcriptRepo: transcriptRepo,
		agentRepo:      agentRepo,
		recordings:     recordings,
		archive:        archive,
		transcriber:    transcriber,
		logger:         logger,
	}
}

// Transcribe produces the transcript for a call. With force, any
// existing transcript is deleted and the call is transcribed again.
// The second return value reports a cache hit.
func (s *Service) Transcribe(ctx context.Context, call *entities.CallRecord, force bool) (*entities.Transcript, bool, error) {
	if force {
		if err := s.transcriptRepo.DeleteByCallID(ctx, call.CallID); err != nil {
			return nil, false, fmt.Errorf("delete existing transcript: %w", err)
		}
	} else {
		existing, err := s.transcriptRepo.GetByCallID(ctx, call.CallID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.logger.Info("📋 Transcript already stored, skipping STT",
				zap.String("call_id", call.CallID),
			)
			return existing, true, nil
		}
	}

	audio, err := s.fetchAudio(ctx, call.ActivityName)
	if err != nil {
		return nil, false, err
	}

	agentName := ""
	if call.AgentID != nil {
		agent, err := s.agentRepo.GetByID(ctx, *call.AgentID)
		if err != nil {
			return nil, false, err
		}
		if agent != nil {
			agentName = agent.DisplayName
		}
	}

	s.logger.Info("🎙️ Transcribing call",
		zap.String("call_id", call.CallID),
		zap.String("activity_name", call.ActivityName),
		zap.Int("audio_bytes", len(audio)),
	)

	result, err := s.transcriber.Transcribe(ctx, audio, agentName)
	if err != nil {
		return nil, false, err
	}

	transcript := entities.NewTranscript(call.CallID, result.Text, result.LanguageCode, result.Utterances)
	if err := s.transcriptRepo.Upsert(ctx, transcript); err != nil {
		return nil, false, fmt.Errorf("store transcript: %w", err)
	}

	s.logger.Info("✅ Transcript stored",
		zap.String("call_id", call.CallID),
		zap.String("language", transcript.LanguageCode),
		zap.Int("utterances", len(transcript.Utterances)),
	)
	return transcript, false, nil
}

// fetchAudio tries the archive first, then the call platform. A fresh
// download is archived best effort so retries skip the platform.
func (s *Service) fetchAudio(ctx context.Context, activityName string) ([]byte, error) {
	if s.archive != nil {
		audio, _, err := s.archive.Get(ctx, activityName)
		if err == nil {
			s.logger.Info("📥 Recording served from archive",
				zap.String("activity_name", activityName),
			)
			return audio, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Archive lookup failed, falling back to platform",
				zap.String("activity_name", activityName),
				zap.Error(err),
			)
		}
	}

	audio, contentType, err := s.recordings.FetchRecording(ctx, activityName)
	if err != nil {
		return nil, fmt.Errorf("fetch recording: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, activityName, audio, contentType); err != nil {
			s.logger.Warn("Failed to archive recording",
				zap.String("activity_name", activityName),
				zap.Error(err),
			)
		}
	}
	return audio, nil
}
