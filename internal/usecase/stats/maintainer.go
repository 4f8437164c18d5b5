// Package stats maintains the incremental QA aggregates. Every mutation
// is expressed against a StatsStore so callers can run it inside the
// same transaction as the analysis write it belongs to.
package stats

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/domain/repositories"
)

// Maintainer applies and reverts aggregate deltas for analyzed calls
type Maintainer struct {
	logger *zap.Logger
}

// NewMaintainer creates a maintainer
func NewMaintainer(logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintainer{logger: logger}
}

// ComputeScore derives the 0-100 call score: the share of questions
// answered exactly "Tak". Empty result sets score 0.
func ComputeScore(results []entities.QaResult) int {
	if len(results) == 0 {
		return 0
	}
	tak := 0
	for _, r := range results {
		if r.Answer == entities.AnswerTak {
			tak++
		}
	}
	return int(math.Round(float64(tak) / float64(len(results)) * 100))
}

// Apply counts a freshly analyzed call into the aggregates: sets the
// cached score, bumps the agent aggregate and tallies every answer.
// Calls without an agent or question group are ignored.
func (m *Maintainer) Apply(ctx context.Context, store repositories.StatsStore, callID string, results []entities.QaResult) error {
	call, err := store.GetCallByCallID(ctx, callID)
	if err != nil {
		return err
	}
	if call == nil || call.AgentID == nil || call.QuestionGroupID == nil {
		return nil
	}

	score := ComputeScore(results)
	if err := store.SetCallQaScore(ctx, call.ID, &score); err != nil {
		return err
	}

	if _, err := store.GetOrCreateCallStats(ctx, *call.AgentID, *call.QuestionGroupID); err != nil {
		return err
	}
	if err := store.AddCallStatsDelta(ctx, *call.AgentID, *call.QuestionGroupID, 1, score, call.Duration); err != nil {
		return err
	}

	for _, result := range results {
		if _, err := store.GetOrCreateQuestionStats(ctx, result.QuestionID, *call.QuestionGroupID); err != nil {
			return err
		}
		dTak, dNie := answerDeltas(result.Answer)
		if err := store.AddQuestionStatsDelta(ctx, result.QuestionID, dTak, dNie, 1); err != nil {
			return err
		}
	}

	m.logger.Debug("Applied call to aggregates",
		zap.String("call_id", callID),
		zap.Int("score", score),
		zap.Int("results", len(results)),
	)
	return nil
}

// Revert removes a previously counted call from the aggregates and
// clears its cached score. It is a no-op when the call never counted:
// no agent, no group, or no stored analysis.
func (m *Maintainer) Revert(ctx context.Context, store repositories.StatsStore, callID string) error {
	call, err := store.GetCallByCallID(ctx, callID)
	if err != nil {
		return err
	}
	if call == nil || call.AgentID == nil || call.QuestionGroupID == nil {
		return nil
	}

	transcript, err := store.GetTranscriptByCallID(ctx, callID)
	if err != nil {
		return err
	}
	if transcript == nil || transcript.QaAnalysis == nil {
		return nil
	}

	score := 0
	if call.QaScore != nil {
		score = *call.QaScore
	}

	if err := store.AddCallStatsDelta(ctx, *call.AgentID, *call.QuestionGroupID, -1, -score, -call.Duration); err != nil {
		return err
	}

	for _, result := range transcript.QaAnalysis.Results {
		dTak, dNie := answerDeltas(result.Answer)
		if err := store.AddQuestionStatsDelta(ctx, result.QuestionID, -dTak, -dNie, -1); err != nil {
			return err
		}
	}

	if err := store.SetCallQaScore(ctx, call.ID, nil); err != nil {
		return err
	}

	m.logger.Debug("Reverted call from aggregates",
		zap.String("call_id", callID),
		zap.Int("score", score),
	)
	return nil
}

// ApplyAnswerEdit reconciles the aggregates after one answer of an
// already-counted call changed. The transcript must already hold the
// edited result set. Analyzed count and duration are untouched.
func (m *Maintainer) ApplyAnswerEdit(ctx context.Context, store repositories.StatsStore, callID, questionID, oldAnswer, newAnswer string) error {
	if oldAnswer == newAnswer {
		return nil
	}

	call, err := store.GetCallByCallID(ctx, callID)
	if err != nil {
		return err
	}
	if call == nil || call.AgentID == nil || call.QuestionGroupID == nil {
		return nil
	}

	oldTak, oldNie := answerDeltas(oldAnswer)
	newTak, newNie := answerDeltas(newAnswer)
	if err := store.AddQuestionStatsDelta(ctx, questionID, newTak-oldTak, newNie-oldNie, 0); err != nil {
		return err
	}

	transcript, err := store.GetTranscriptByCallID(ctx, callID)
	if err != nil {
		return err
	}
	if transcript == nil || transcript.QaAnalysis == nil {
		return nil
	}

	newScore := ComputeScore(transcript.QaAnalysis.Results)
	oldScore := 0
	if call.QaScore != nil {
		oldScore = *call.QaScore
	}

	if err := store.SetCallQaScore(ctx, call.ID, &newScore); err != nil {
		return err
	}

	if delta := newScore - oldScore; delta != 0 {
		if err := store.AddCallStatsDelta(ctx, *call.AgentID, *call.QuestionGroupID, 0, delta, 0); err != nil {
			return err
		}
	}

	return nil
}

func answerDeltas(answer string) (tak, nie int) {
	switch answer {
	case entities.AnswerTak:
		return 1, 0
	case entities.AnswerNie:
		return 0, 1
	}
	return 0, 0
}
