package repositories

import (
	"context"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// TranscriptRepository defines persistence operations for transcripts
type TranscriptRepository interface {
	GetByCallID(ctx context.Context, callID string) (*entities.Transcript, error)
	Upsert(ctx context.Context, transcript *entities.Transcript) error
	DeleteByCallID(ctx context.Context, callID string) error
	SaveHumanReview(ctx context.Context, callID string, review entities.HumanReview) error
}
