package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// TranscriptRepository handles transcript persistence
type TranscriptRepository struct {
	db *gorm.DB
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// GetByCallID retrieves the transcript for a call
func (r *TranscriptRepository) GetByCallID(ctx context.Context, callID string) (*entities.Transcript, error) {
	var transcript entities.Transcript
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).First(&transcript).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transcript, nil
}

// Upsert inserts or replaces the transcript for a call. Analysis and
// review columns are preserved on conflict; only the transcription
// itself is replaced.
func (r *TranscriptRepository) Upsert(ctx context.Context, transcript *entities.Transcript) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "language_code", "utterances", "updated_at"}),
		}).
		Create(transcript).Error
}

// DeleteByCallID removes the transcript for a call
func (r *TranscriptRepository) DeleteByCallID(ctx context.Context, callID string) error {
	return r.db.WithContext(ctx).
		Where("call_id = ?", callID).
		Delete(&entities.Transcript{}).Error
}

// SaveHumanReview attaches a reviewer's answers to the transcript
func (r *TranscriptRepository) SaveHumanReview(ctx context.Context, callID string, review entities.HumanReview) error {
	wrapped := datatypes.NewJSONType(review)
	result := r.db.WithContext(ctx).
		Model(&entities.Transcript{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"human_review": wrapped,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
