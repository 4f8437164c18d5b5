package entities

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus represents where a call sits in the QA pipeline
type ProcessingStatus string

const (
	StatusSynced       ProcessingStatus = "synced"       // Imported from the call platform, waiting for transcription
	StatusTranscribing ProcessingStatus = "transcribing" // Transcription job in flight
	StatusTranscribed  ProcessingStatus = "transcribed"  // Transcript stored, waiting for analysis
	StatusAnalyzing    ProcessingStatus = "analyzing"    // Analysis job in flight
	StatusAnalyzed     ProcessingStatus = "analyzed"     // QA analysis stored
	StatusSkipped      ProcessingStatus = "skipped"      // No question group assigned, nothing to analyze
	StatusFailed       ProcessingStatus = "failed"       // Terminal failure, waiting for manual retry
)

// CallRecord represents one recorded call synced from the call platform
type CallRecord struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CallID       string    `json:"call_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ActivityName string    `json:"activity_name" gorm:"type:varchar(255);not null"` // Recording reference on the platform
	CallTime     time.Time `json:"call_time" gorm:"type:timestamp;not null;index"`
	Duration     int       `json:"duration" gorm:"type:integer;default:0"` // Seconds
	Direction    *string   `json:"direction,omitempty" gorm:"type:varchar(50)"`
	Answered     *bool     `json:"answered,omitempty"`
	CLID         *string   `json:"clid,omitempty" gorm:"type:varchar(100)"`
	ContactName  *string   `json:"contact_name,omitempty" gorm:"type:varchar(255)"`
	QueueName    *string   `json:"queue_name,omitempty" gorm:"type:varchar(255)"`

	AgentID         *uuid.UUID `json:"agent_id,omitempty" gorm:"type:uuid;index"`
	QuestionGroupID *uuid.UUID `json:"question_group_id,omitempty" gorm:"type:uuid;index"`

	ProcessingStatus ProcessingStatus `json:"processing_status" gorm:"type:varchar(50);not null;index;default:'synced'"`
	ProcessingError  *string          `json:"processing_error,omitempty" gorm:"type:text"`
	RetryCount       int              `json:"retry_count" gorm:"type:integer;default:0"`
	LastProcessedAt  *time.Time       `json:"last_processed_at,omitempty" gorm:"type:timestamp"`

	// Cached 0-100 score, maintained by the statistics maintainer.
	// Set if and only if the call currently counts toward the aggregates.
	QaScore *int `json:"qa_score,omitempty" gorm:"type:integer"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewCallRecord creates a call record in synced status
func NewCallRecord(callID, activityName string, callTime time.Time, duration int) *CallRecord {
	return &CallRecord{
		ID:               uuid.New(),
		CallID:           callID,
		ActivityName:     activityName,
		CallTime:         callTime,
		Duration:         duration,
		ProcessingStatus: StatusSynced,
	}
}

// IsTerminal reports whether the status needs no further pipeline work
func (c *CallRecord) IsTerminal() bool {
	switch c.ProcessingStatus {
	case StatusAnalyzed, StatusSkipped:
		return true
	}
	return false
}

// IsStale reports whether an in-flight call has been processing longer than threshold
func (c *CallRecord) IsStale(now time.Time, threshold time.Duration) bool {
	if c.ProcessingStatus != StatusTranscribing && c.ProcessingStatus != StatusAnalyzing {
		return false
	}
	return c.LastProcessedAt != nil && now.Sub(*c.LastProcessedAt) > threshold
}

// TableName specifies the table name for GORM
func (CallRecord) TableName() string {
	return "calls"
}
