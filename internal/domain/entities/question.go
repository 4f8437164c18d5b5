package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuestionGroup is a named rubric: a set of questions sharing one grading prompt
type QuestionGroup struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	// SystemPrompt may contain a {{agentName}} placeholder substituted per call.
	SystemPrompt string `json:"system_prompt" gorm:"type:text;not null"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (QuestionGroup) TableName() string {
	return "question_groups"
}

// Question is one rubric question with its grading context
type Question struct {
	ID              uuid.UUID                   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	QuestionID      string                      `json:"question_id" gorm:"type:varchar(100);not null;uniqueIndex"`
	GroupID         uuid.UUID                   `json:"group_id" gorm:"type:uuid;not null;index"`
	Question        string                      `json:"question" gorm:"type:text;not null"`
	Context         *string                     `json:"context,omitempty" gorm:"type:text"`
	ReferenceScript *string                     `json:"reference_script,omitempty" gorm:"type:text"`
	GoodExamples    datatypes.JSONSlice[string] `json:"good_examples,omitempty" gorm:"type:jsonb"`
	BadExamples     datatypes.JSONSlice[string] `json:"bad_examples,omitempty" gorm:"type:jsonb"`
	PossibleAnswers datatypes.JSONSlice[string] `json:"possible_answers" gorm:"type:jsonb;not null"`
	SortOrder       int                         `json:"sort_order" gorm:"type:integer;default:0"`
	IsActive        bool                        `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Question) TableName() string {
	return "questions"
}

// StatusMapping links a platform status tag to a question group.
// The ingestion sync only pulls calls whose status is active for QA, and
// assigns the mapped group at ingestion time.
type StatusMapping struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	StatusID        string     `json:"status_id" gorm:"type:varchar(100);not null;uniqueIndex"`
	Name            string     `json:"name" gorm:"type:varchar(255);not null"`
	Title           string     `json:"title" gorm:"type:varchar(255);not null"`
	IsActiveForQa   bool       `json:"is_active_for_qa" gorm:"default:false;index"`
	QuestionGroupID *uuid.UUID `json:"question_group_id,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (StatusMapping) TableName() string {
	return "status_mappings"
}
