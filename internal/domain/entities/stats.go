package entities

import (
	"time"

	"github.com/google/uuid"
)

// CallStats is the incrementally maintained aggregate for one
// (agent, question group) pair. Created lazily, never deleted;
// counters may decay to zero.
type CallStats struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AgentID         uuid.UUID `json:"agent_id" gorm:"type:uuid;not null;uniqueIndex:idx_call_stats_agent_group;index"`
	QuestionGroupID uuid.UUID `json:"question_group_id" gorm:"type:uuid;not null;uniqueIndex:idx_call_stats_agent_group"`
	AnalyzedCount   int       `json:"analyzed_count" gorm:"type:integer;not null;default:0"`
	TotalScore      int       `json:"total_score" gorm:"type:integer;not null;default:0"`
	TotalDuration   int       `json:"total_duration" gorm:"type:integer;not null;default:0"` // Seconds
	LastUpdatedAt   time.Time `json:"last_updated_at" gorm:"type:timestamp;not null"`
}

// AverageScore is derived, never stored
func (s *CallStats) AverageScore() int {
	if s.AnalyzedCount == 0 {
		return 0
	}
	return int(float64(s.TotalScore)/float64(s.AnalyzedCount) + 0.5)
}

// TableName specifies the table name for GORM
func (CallStats) TableName() string {
	return "call_stats"
}

// QuestionStats is the answer tally for one rubric question across all
// analyzed calls. Answers other than Tak/Nie (including the Error
// sentinel) count only toward TotalCount.
type QuestionStats struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	QuestionID    string    `json:"question_id" gorm:"type:varchar(100);not null;uniqueIndex"`
	GroupID       uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index"`
	TakCount      int       `json:"tak_count" gorm:"type:integer;not null;default:0"`
	NieCount      int       `json:"nie_count" gorm:"type:integer;not null;default:0"`
	TotalCount    int       `json:"total_count" gorm:"type:integer;not null;default:0"`
	LastUpdatedAt time.Time `json:"last_updated_at" gorm:"type:timestamp;not null"`
}

// PassRate returns the percentage of Tak answers, 0 when empty
func (s *QuestionStats) PassRate() int {
	if s.TotalCount == 0 {
		return 0
	}
	return int(float64(s.TakCount)/float64(s.TotalCount)*100 + 0.5)
}

// TableName specifies the table name for GORM
func (QuestionStats) TableName() string {
	return "question_stats"
}
