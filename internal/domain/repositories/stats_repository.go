package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/inkaso/callqa/internal/domain/entities"
)

// StatsStore is the slice of persistence the statistics maintainer touches.
// Every mutation that changes a call's analysis outcome goes through a
// store obtained from Transactor.Atomically, so the qa_analysis write and
// the aggregate deltas commit or roll back together.
type StatsStore interface {
	GetCallByCallID(ctx context.Context, callID string) (*entities.CallRecord, error)
	SetCallQaScore(ctx context.Context, id uuid.UUID, score *int) error

	GetTranscriptByCallID(ctx context.Context, callID string) (*entities.Transcript, error)
	// SaveQaAnalysis replaces the transcript's analysis; nil clears it.
	SaveQaAnalysis(ctx context.Context, callID string, analysis *entities.QaAnalysis) error

	GetOrCreateCallStats(ctx context.Context, agentID, groupID uuid.UUID) (*entities.CallStats, error)
	// AddCallStatsDelta adjusts counters, flooring each at zero.
	AddCallStatsDelta(ctx context.Context, agentID, groupID uuid.UUID, dAnalyzed, dScore, dDuration int) error

	GetOrCreateQuestionStats(ctx context.Context, questionID string, groupID uuid.UUID) (*entities.QuestionStats, error)
	// AddQuestionStatsDelta adjusts tallies, flooring each at zero.
	AddQuestionStatsDelta(ctx context.Context, questionID string, dTak, dNie, dTotal int) error
}

// Transactor runs a function against a StatsStore inside one transaction
type Transactor interface {
	Atomically(ctx context.Context, fn func(StatsStore) error) error
}

// StatsReadRepository serves the aggregate read queries
type StatsReadRepository interface {
	ListCallStats(ctx context.Context) ([]entities.CallStats, error)
	ListCallStatsByAgent(ctx context.Context, agentID uuid.UUID) ([]entities.CallStats, error)
	ListQuestionStats(ctx context.Context) ([]entities.QuestionStats, error)
	ListQuestionStatsByGroup(ctx context.Context, groupID uuid.UUID) ([]entities.QuestionStats, error)
}
