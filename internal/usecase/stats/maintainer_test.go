package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkaso/callqa/internal/domain/entities"
)

type fakeStore struct {
	calls         map[string]*entities.CallRecord
	transcripts   map[string]*entities.Transcript
	callStats     map[string]*entities.CallStats
	questionStats map[string]*entities.QuestionStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calls:         map[string]*entities.CallRecord{},
		transcripts:   map[string]*entities.Transcript{},
		callStats:     map[string]*entities.CallStats{},
		questionStats: map[string]*entities.QuestionStats{},
	}
}

func callStatsKey(agentID, groupID uuid.UUID) string {
	return agentID.String() + "/" + groupID.String()
}

func (f *fakeStore) GetCallByCallID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	return f.calls[callID], nil
}

func (f *fakeStore) SetCallQaScore(ctx context.Context, id uuid.UUID, score *int) error {
	for _, call := range f.calls {
		if call.ID == id {
			call.QaScore = score
		}
	}
	return nil
}

func (f *fakeStore) GetTranscriptByCallID(ctx context.Context, callID string) (*entities.Transcript, error) {
	return f.transcripts[callID], nil
}

func (f *fakeStore) SaveQaAnalysis(ctx context.Context, callID string, analysis *entities.QaAnalysis) error {
	transcript, ok := f.transcripts[callID]
	if !ok {
		return nil
	}
	transcript.QaAnalysis = analysis
	return nil
}

func (f *fakeStore) GetOrCreateCallStats(ctx context.Context, agentID, groupID uuid.UUID) (*entities.CallStats, error) {
	key := callStatsKey(agentID, groupID)
	if existing, ok := f.callStats[key]; ok {
		return existing, nil
	}
	row := &entities.CallStats{
		ID:              uuid.New(),
		AgentID:         agentID,
		QuestionGroupID: groupID,
		LastUpdatedAt:   time.Now(),
	}
	f.callStats[key] = row
	return row, nil
}

func (f *fakeStore) AddCallStatsDelta(ctx context.Context, agentID, groupID uuid.UUID, dAnalyzed, dScore, dDuration int) error {
	row, ok := f.callStats[callStatsKey(agentID, groupID)]
	if !ok {
		return nil
	}
	row.AnalyzedCount = max(0, row.AnalyzedCount+dAnalyzed)
	row.TotalScore = max(0, row.TotalScore+dScore)
	row.TotalDuration = max(0, row.TotalDuration+dDuration)
	return nil
}

func (f *fakeStore) GetOrCreateQuestionStats(ctx context.Context, questionID string, groupID uuid.UUID) (*entities.QuestionStats, error) {
	if existing, ok := f.questionStats[questionID]; ok {
		return existing, nil
	}
	row := &entities.QuestionStats{
		ID:            uuid.New(),
		QuestionID:    questionID,
		GroupID:       groupID,
		LastUpdatedAt: time.Now(),
	}
	f.questionStats[questionID] = row
	return row, nil
}

func (f *fakeStore) AddQuestionStatsDelta(ctx context.Context, questionID string, dTak, dNie, dTotal int) error {
	row, ok := f.questionStats[questionID]
	if !ok {
		return nil
	}
	row.TakCount = max(0, row.TakCount+dTak)
	row.NieCount = max(0, row.NieCount+dNie)
	row.TotalCount = max(0, row.TotalCount+dTotal)
	return nil
}

func seedCall(store *fakeStore, agentID, groupID uuid.UUID) *entities.CallRecord {
	call := entities.NewCallRecord("call-1", "activities_1001", time.Now(), 240)
	call.AgentID = &agentID
	call.QuestionGroupID = &groupID
	store.calls[call.CallID] = call
	return call
}

func TestComputeScore(t *testing.T) {
	assert.Equal(t, 0, ComputeScore(nil))
	assert.Equal(t, 100, ComputeScore([]entities.QaResult{{Answer: "Tak"}}))
	assert.Equal(t, 50, ComputeScore([]entities.QaResult{{Answer: "Tak"}, {Answer: "Nie"}}))
	// 2/3 rounds up
	assert.Equal(t, 67, ComputeScore([]entities.QaResult{
		{Answer: "Tak"}, {Answer: "Tak"}, {Answer: "Nie"},
	}))
	// Error answers count toward the denominator
	assert.Equal(t, 33, ComputeScore([]entities.QaResult{
		{Answer: "Tak"}, {Answer: "Error"}, {Answer: "Nie dotyczy"},
	}))
}

func TestApplyCountsCall(t *testing.T) {
	store := newFakeStore()
	agentID, groupID := uuid.New(), uuid.New()
	call := seedCall(store, agentID, groupID)

	results := []entities.QaResult{
		{QuestionID: "q1", Answer: "Tak"},
		{QuestionID: "q2", Answer: "Nie"},
		{QuestionID: "q3", Answer: "Error"},
	}

	maintainer := NewMaintainer(nil)
	require.NoError(t, maintainer.Apply(context.Background(), store, call.CallID, results))

	require.NotNil(t, call.QaScore)
	assert.Equal(t, 33, *call.QaScore)

	cs := store.callStats[callStatsKey(agentID, groupID)]
	require.NotNil(t, cs)
	assert.Equal(t, 1, cs.AnalyzedCount)
	assert.Equal(t, 33, cs.TotalScore)
	assert.Equal(t, 240, cs.TotalDuration)

	assert.Equal(t, 1, store.questionStats["q1"].TakCount)
	assert.Equal(t, 1, store.questionStats["q2"].NieCount)
	assert.Equal(t, 0, store.questionStats["q3"].TakCount)
	assert.Equal(t, 0, store.questionStats["q3"].NieCount)
	assert.Equal(t, 1, store.questionStats["q3"].TotalCount)
}

func TestApplySkipsCallWithoutAgent(t *testing.T) {
	store := newFakeStore()
	call := entities.NewCallRecord("call-1", "activities_1001", time.Now(), 100)
	store.calls[call.CallID] = call

	maintainer := NewMaintainer(nil)
	require.NoError(t, maintainer.Apply(context.Background(), store, call.CallID, []entities.QaResult{{QuestionID: "q1", Answer: "Tak"}}))

	assert.Nil(t, call.QaScore)
	assert.Empty(t, store.callStats)
	assert.Empty(t, store.questionStats)
}

func TestRevertUndoesApply(t *testing.T) {
	store := newFakeStore()
	agentID, groupID := uuid.New(), uuid.New()
	call := seedCall(store, agentID, groupID)

	results := []entities.QaResult{
		{QuestionID: "q1", Answer: "Tak"},
		{QuestionID: "q2", Answer: "Nie"},
	}
	store.transcripts[call.CallID] = &entities.Transcript{
		CallID:     call.CallID,
		QaAnalysis: &entities.QaAnalysis{CompletedAt: time.Now(), Results: results},
	}

	maintainer := NewMaintainer(nil)
	ctx := context.Background()
	require.NoError(t, maintainer.Apply(ctx, store, call.CallID, results))
	require.NoError(t, maintainer.Revert(ctx, store, call.CallID))

	assert.Nil(t, call.QaScore)

	cs := store.callStats[callStatsKey(agentID, groupID)]
	assert.Equal(t, 0, cs.AnalyzedCount)
	assert.Equal(t, 0, cs.TotalScore)
	assert.Equal(t, 0, cs.TotalDuration)
	assert.Equal(t, 0, store.questionStats["q1"].TakCount)
	assert.Equal(t, 0, store.questionStats["q1"].TotalCount)
	assert.Equal(t, 0, store.questionStats["q2"].NieCount)
}

func TestRevertIsNoopWithoutAnalysis(t *testing.T) {
	store := newFakeStore()
	agentID, groupID := uuid.New(), uuid.New()
	call := seedCall(store, agentID, groupID)
	score := 80
	call.QaScore = &score

	maintainer := NewMaintainer(nil)
	require.NoError(t, maintainer.Revert(context.Background(), store, call.CallID))

	// Score stays; nothing was counted, nothing to revert
	require.NotNil(t, call.QaScore)
	assert.Equal(t, 80, *call.QaScore)
}

func TestRevertFloorsAtZero(t *testing.T) {
	store := newFakeStore()
	agentID, groupID := uuid.New(), uuid.New()
	call := seedCall(store, agentID, groupID)

	results := []entities.QaResult{{QuestionID: "q1", Answer: "Tak"}}
	store.transcripts[call.CallID] = &entities.Transcript{
		CallID:     call.CallID,
		QaAnalysis: &entities.QaAnalysis{CompletedAt: time.Now(), Results: results},
	}
	// Aggregates exist but are already empty
	store.callStats[callStatsKey(agentID, groupID)] = &entities.CallStats{
		AgentID: agentID, QuestionGroupID: groupID,
	}
	store.questionStats["q1"] = &entities.QuestionStats{QuestionID: "q1", GroupID: groupID}
	score := 100
	call.QaScore = &score

	maintainer := NewMaintainer(nil)
	require.NoError(t, maintainer.Revert(context.Background(), store, call.CallID))

	cs := store.callStats[callStatsKey(agentID, groupID)]
	assert.Equal(t, 0, cs.AnalyzedCount)
	assert.Equal(t, 0, cs.TotalScore)
	assert.Equal(t, 0, store.questionStats["q1"].TakCount)
	assert.Equal(t, 0, store.questionStats["q1"].TotalCount)
}

func TestApplyAnswerEditAdjustsTalliesAndScore(t *testing.T) {
	store := newFakeStore()
	agentID, groupID := uuid.New(), uuid.New()
	call := seedCall(store, agentID, groupID)

	// Two questions, originally Tak/Nie => score 50, counted already
	edited := []entities.QaResult{
		{QuestionID: "q1", Answer: "Tak"},
		{QuestionID: "q2", Answer: "Tak"}, // after the edit
	}
	store.transcripts[call.CallID] = &entities.Transcript{
		CallID:     call.CallID,
		QaAnalysis: &entities.QaAnalysis{CompletedAt: time.Now(), Results: edited},
	}
	oldScore := 50
	call.QaScore = &oldScore
	store.callStats[callStatsKey(agentID, groupID)] = &entities.CallStats{
		AgentID: agentID, QuestionGroupID: groupID,
		AnalyzedCount: 1, TotalScore: 50, TotalDuration: 240,
	}
	store.questionStats["q2"] = &entities.QuestionStats{
		QuestionID: "q2", GroupID: groupID, NieCount: 1, TotalCount: 1,
	}

	maintainer := NewMaintainer(nil)
	require.NoError(t, maintainer.ApplyAnswerEdit(context.Background(), store, call.CallID, "q2", "Nie", "Tak"))

	require.NotNil(t, call.QaScore)
	assert.Equal(t, 100, *call.QaScore)

	qs := store.questionStats["q2"]
	assert.Equal(t, 1, qs.TakCount)
	assert.Equal(t, 0, qs.NieCount)
	assert.Equal(t, 1, qs.TotalCount)

	cs := store.callStats[callStatsKey(agentID, groupID)]
	assert.Equal(t, 1, cs.AnalyzedCount)
	assert.Equal(t, 100, cs.TotalScore)
	assert.Equal(t, 240, cs.TotalDuration)
}

func TestApplyAnswerEditSameAnswerIsNoop(t *testing.T) {
	store := newFakeStore()
	agentID, groupID := uuid.New(), uuid.New()
	call := seedCall(store, agentID, groupID)
	store.questionStats["q1"] = &entities.QuestionStats{
		QuestionID: "q1", GroupID: groupID, TakCount: 1, TotalCount: 1,
	}

	maintainer := NewMaintainer(nil)
	require.NoError(t, maintainer.ApplyAnswerEdit(context.Background(), store, call.CallID, "q1", "Tak", "Tak"))

	assert.Equal(t, 1, store.questionStats["q1"].TakCount)
}
