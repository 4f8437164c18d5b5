package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Answer strings the statistics engine recognizes. Possible answers on
// questions are free-form; only the exact string "Tak" counts as positive.
const (
	AnswerTak   = "Tak"
	AnswerNie   = "Nie"
	AnswerError = "Error" // Sentinel for a question the model could not answer
)

// Utterance is one speaker turn reconstructed from STT word timings
type Utterance struct {
	Speaker    int     `json:"speaker"`
	Transcript string  `json:"transcript"`
	Start      float64 `json:"start"` // Seconds
	End        float64 `json:"end"`
}

// QaResult is the model's answer to one rubric question
type QaResult struct {
	QuestionID    string `json:"question_id"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Justification string `json:"justification"`
}

// QaAnalysis is the full result set for one call, persisted atomically
type QaAnalysis struct {
	CompletedAt time.Time  `json:"completed_at"`
	Results     []QaResult `json:"results"`
}

// ErrorCount returns how many questions resolved to the Error sentinel
func (a *QaAnalysis) ErrorCount() int {
	n := 0
	for _, r := range a.Results {
		if r.Answer == AnswerError {
			n++
		}
	}
	return n
}

// HumanReview holds a reviewer's answers keyed by question id.
// The answer lists are validated at the ingestion boundary.
type HumanReview struct {
	ReviewID     string              `json:"review_id"`
	ActivityName string              `json:"activity_name"`
	Answers      map[string][]string `json:"answers"`
	ReviewedAt   *string             `json:"reviewed_at,omitempty"`
	ReviewedBy   *string             `json:"reviewed_by,omitempty"`
	FetchedAt    time.Time           `json:"fetched_at"`
}

// Transcript is the one-to-one transcription record for a call.
// Created only when transcription succeeds.
type Transcript struct {
	ID           uuid.UUID                        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CallID       string                           `json:"call_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Text         string                           `json:"text" gorm:"type:text;not null"`
	LanguageCode string                           `json:"language_code" gorm:"type:varchar(20)"`
	Utterances   datatypes.JSONSlice[Utterance]   `json:"utterances,omitempty" gorm:"type:jsonb"`
	QaAnalysis   *QaAnalysis                      `json:"qa_analysis,omitempty" gorm:"type:jsonb;serializer:json"`
	HumanReview  *datatypes.JSONType[HumanReview] `json:"human_review,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewTranscript creates a transcript for a call
func NewTranscript(callID, text, languageCode string, utterances []Utterance) *Transcript {
	return &Transcript{
		ID:           uuid.New(),
		CallID:       callID,
		Text:         text,
		LanguageCode: languageCode,
		Utterances:   utterances,
	}
}

// TableName specifies the table name for GORM
func (Transcript) TableName() string {
	return "transcripts"
}
