package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// CallRepository handles call record persistence
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create inserts a new call record
func (r *CallRepository) Create(ctx context.Context, call *entities.CallRecord) error {
	if call == nil {
		return errors.New("call cannot be nil")
	}
	return r.db.WithContext(ctx).Create(call).Error
}

// GetByID retrieves a call record by internal ID
func (r *CallRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.CallRecord, error) {
	var call entities.CallRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// GetByCallID retrieves a call record by platform call ID
func (r *CallRepository) GetByCallID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	var call entities.CallRecord
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// List retrieves call records newest first, with the total count
func (r *CallRepository) List(ctx context.Context, limit, offset int) ([]entities.CallRecord, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.CallRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var calls []entities.CallRecord
	if err := r.db.WithContext(ctx).
		Order("call_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&calls).Error; err != nil {
		return nil, 0, err
	}
	return calls, total, nil
}

// ListByStatus retrieves call records in a given status, oldest call first
func (r *CallRepository) ListByStatus(ctx context.Context, status entities.ProcessingStatus, limit int) ([]entities.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var calls []entities.CallRecord
	if err := r.db.WithContext(ctx).
		Where("processing_status = ?", status).
		Order("call_time ASC").
		Limit(limit).
		Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// ListStale retrieves in-flight records whose last activity is older than the cutoff
func (r *CallRepository) ListStale(ctx context.Context, status entities.ProcessingStatus, olderThan time.Time, limit int) ([]entities.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var calls []entities.CallRecord
	if err := r.db.WithContext(ctx).
		Where("processing_status = ? AND last_processed_at IS NOT NULL AND last_processed_at < ?", status, olderThan).
		Order("last_processed_at ASC").
		Limit(limit).
		Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// Transition atomically flips status from->to. Only one caller wins when
// several see the same record; losers get ok=false.
func (r *CallRepository) Transition(ctx context.Context, id uuid.UUID, from, to entities.ProcessingStatus) (bool, error) {
	updates := map[string]interface{}{
		"processing_status": to,
		"last_processed_at": time.Now(),
		"updated_at":        time.Now(),
	}
	if to == entities.StatusTranscribed || to == entities.StatusAnalyzed {
		updates["processing_error"] = nil
	}

	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed flips from->failed with an error message
func (r *CallRepository) MarkFailed(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus, message string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(map[string]interface{}{
			"processing_status": entities.StatusFailed,
			"processing_error":  message,
			"last_processed_at": time.Now(),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSkipped flips transcribed->skipped
func (r *CallRepository) MarkSkipped(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, entities.StatusTranscribed).
		Updates(map[string]interface{}{
			"processing_status": entities.StatusSkipped,
			"processing_error":  message,
			"last_processed_at": time.Now(),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RequeueStale flips a stuck in-flight record back to synced and counts the attempt
func (r *CallRepository) RequeueStale(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(map[string]interface{}{
			"processing_status": entities.StatusSynced,
			"retry_count":       gorm.Expr("retry_count + 1"),
			"last_processed_at": time.Now(),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FailStale flips a stuck in-flight record to failed once retries are exhausted
func (r *CallRepository) FailStale(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus, message string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(map[string]interface{}{
			"processing_status": entities.StatusFailed,
			"processing_error":  message,
			"retry_count":       gorm.Expr("retry_count + 1"),
			"last_processed_at": time.Now(),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RequeueForRetry sends a failed record through the pipeline again
func (r *CallRepository) RequeueForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, entities.StatusFailed).
		Updates(map[string]interface{}{
			"processing_status": entities.StatusSynced,
			"retry_count":       gorm.Expr("retry_count + 1"),
			"last_processed_at": time.Now(),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RequeueForReprocess restarts a finished or failed record from scratch
func (r *CallRepository) RequeueForReprocess(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.CallRecord{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(map[string]interface{}{
			"processing_status": entities.StatusSynced,
			"processing_error":  nil,
			"retry_count":       0,
			"last_processed_at": time.Now(),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
