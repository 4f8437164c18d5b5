package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// CallRepository defines persistence operations for call records.
//
// All status-changing methods are guarded: they mutate only when the
// record's current status matches the expected source status and report
// whether the transition happened. The guard is what makes the scheduler
// safe to run concurrently with itself.
type CallRepository interface {
	Create(ctx context.Context, call *entities.CallRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.CallRecord, error)
	GetByCallID(ctx context.Context, callID string) (*entities.CallRecord, error)
	List(ctx context.Context, limit, offset int) ([]entities.CallRecord, int64, error)
	ListByStatus(ctx context.Context, status entities.ProcessingStatus, limit int) ([]entities.CallRecord, error)
	ListStale(ctx context.Context, status entities.ProcessingStatus, olderThan time.Time, limit int) ([]entities.CallRecord, error)

	// Transition flips status from->to and stamps last_processed_at.
	// Processing error is cleared when `to` is a success state
	// (transcribed or analyzed).
	Transition(ctx context.Context, id uuid.UUID, from, to entities.ProcessingStatus) (bool, error)

	// MarkFailed flips from->failed and records a sanitized error message.
	MarkFailed(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus, message string) (bool, error)

	// MarkSkipped flips transcribed->skipped with a descriptive message.
	MarkSkipped(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// RequeueStale flips from->synced and increments retry_count.
	RequeueStale(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus) (bool, error)

	// FailStale flips from->failed, increments retry_count and records message.
	FailStale(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus, message string) (bool, error)

	// RequeueForRetry flips failed->synced and increments retry_count.
	RequeueForRetry(ctx context.Context, id uuid.UUID) (bool, error)

	// RequeueForReprocess flips analyzed/failed->synced and clears the
	// processing error. Statistics reversal is the caller's job.
	RequeueForReprocess(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus) (bool, error)
}
