package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/usecase/qa"
	"github.com/inkaso/callqa/pkg/config"
	"github.com/inkaso/callqa/pkg/workpool"
)

type fakeCallRepo struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*entities.CallRecord
}

func newFakeCallRepo(calls ...*entities.CallRecord) *fakeCallRepo {
	r := &fakeCallRepo{calls: make(map[uuid.UUID]*entities.CallRecord)}
	for _, c := range calls {
		r.calls[c.ID] = c
	}
	return r
}

func (r *fakeCallRepo) get(id uuid.UUID) entities.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.calls[id]
}

func (r *fakeCallRepo) Create(ctx context.Context, call *entities.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call.ID] = call
	return nil
}

func (r *fakeCallRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.calls[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeCallRepo) GetByCallID(ctx context.Context, callID string) (*entities.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.CallID == callID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCallRepo) List(ctx context.Context, limit, offset int) ([]entities.CallRecord, int64, error) {
	return nil, 0, nil
}

func (r *fakeCallRepo) ListByStatus(ctx context.Context, status entities.ProcessingStatus, limit int) ([]entities.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.CallRecord
	for _, c := range r.calls {
		if c.ProcessingStatus == status && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCallRepo) ListStale(ctx context.Context, status entities.ProcessingStatus, olderThan time.Time, limit int) ([]entities.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.CallRecord
	for _, c := range r.calls {
		if c.ProcessingStatus == status && c.LastProcessedAt != nil && c.LastProcessedAt.Before(olderThan) && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCallRepo) Transition(ctx context.Context, id uuid.UUID, from, to entities.ProcessingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != from {
		return false, nil
	}
	c.ProcessingStatus = to
	now := time.Now().UTC()
	c.LastProcessedAt = &now
	if to == entities.StatusTranscribed || to == entities.StatusAnalyzed {
		c.ProcessingError = nil
	}
	return true, nil
}

func (r *fakeCallRepo) MarkFailed(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != from {
		return false, nil
	}
	c.ProcessingStatus = entities.StatusFailed
	c.ProcessingError = &message
	return true, nil
}

func (r *fakeCallRepo) MarkSkipped(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != entities.StatusTranscribed {
		return false, nil
	}
	c.ProcessingStatus = entities.StatusSkipped
	c.ProcessingError = &message
	return true, nil
}

func (r *fakeCallRepo) RequeueStale(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != from {
		return false, nil
	}
	c.ProcessingStatus = entities.StatusSynced
	c.RetryCount++
	return true, nil
}

func (r *fakeCallRepo) FailStale(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != from {
		return false, nil
	}
	c.ProcessingStatus = entities.StatusFailed
	c.ProcessingError = &message
	c.RetryCount++
	return true, nil
}

func (r *fakeCallRepo) RequeueForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != entities.StatusFailed {
		return false, nil
	}
	c.ProcessingStatus = entities.StatusSynced
	c.RetryCount++
	return true, nil
}

func (r *fakeCallRepo) RequeueForReprocess(ctx context.Context, id uuid.UUID, from entities.ProcessingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.ProcessingStatus != from {
		return false, nil
	}
	c.ProcessingStatus = entities.StatusSynced
	c.ProcessingError = nil
	c.RetryCount = 0
	return true, nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	runs  int
	err   error
	block chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, call *entities.CallRecord, force bool) (*entities.Transcript, bool, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, false, f.err
	}
	return &entities.Transcript{CallID: call.CallID}, false, nil
}

func (f *fakeTranscriber) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type fakeAnalyzer struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, call *entities.CallRecord) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	return f.err
}

func (f *fakeAnalyzer) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type deniedLocker struct{}

func (deniedLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}
func (deniedLocker) Release(ctx context.Context, key string) error { return nil }

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Interval:                 time.Minute,
		BatchSize:                10,
		StaleThreshold:           15 * time.Minute,
		StaleRetryLimit:          3,
		TranscriptionParallelism: 2,
		AnalysisParallelism:      2,
		RetryMaxAttempts:         1,
		RetryInitialBackoff:      time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, repo *fakeCallRepo, tr *fakeTranscriber, an *fakeAnalyzer) *Scheduler {
	t.Helper()
	logger := zap.NewNop()
	cfg := testPipelineConfig()
	tPool := workpool.New(workpool.Options{
		Name:           "transcription",
		Parallelism:    cfg.TranscriptionParallelism,
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
	}, logger)
	aPool := workpool.New(workpool.Options{
		Name:           "analysis",
		Parallelism:    cfg.AnalysisParallelism,
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
	}, logger)
	t.Cleanup(func() {
		tPool.Shutdown()
		aPool.Shutdown()
	})
	return NewScheduler(repo, tr, an, tPool, aPool, nil, cfg, logger)
}

func waitForStatus(t *testing.T, repo *fakeCallRepo, id uuid.UUID, want entities.ProcessingStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return repo.get(id).ProcessingStatus == want
	}, 5*time.Second, 10*time.Millisecond, "call never reached status %s", want)
}

func syncedCall(callID string) *entities.CallRecord {
	c := entities.NewCallRecord(callID, "activity-"+callID, time.Now().UTC(), 120)
	c.ID = uuid.New()
	return c
}

func TestTickTranscribesSyncedCalls(t *testing.T) {
	call := syncedCall("call-1")
	repo := newFakeCallRepo(call)
	tr := &fakeTranscriber{}
	sched := newTestScheduler(t, repo, tr, &fakeAnalyzer{})

	require.NoError(t, sched.Tick(context.Background()))

	waitForStatus(t, repo, call.ID, entities.StatusTranscribed)
	assert.Equal(t, 1, tr.runCount())
	assert.Nil(t, repo.get(call.ID).ProcessingError)
}

func TestTickMarksTranscriptionFailure(t *testing.T) {
	call := syncedCall("call-2")
	repo := newFakeCallRepo(call)
	tr := &fakeTranscriber{err: errors.New("Error: upload timed out\n    at upload (client.go:40)")}
	sched := newTestScheduler(t, repo, tr, &fakeAnalyzer{})

	require.NoError(t, sched.Tick(context.Background()))

	waitForStatus(t, repo, call.ID, entities.StatusFailed)
	got := repo.get(call.ID)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, "Transcription failed: upload timed out", *got.ProcessingError)
}

func TestTickSkipsCallsWithoutQuestionGroup(t *testing.T) {
	call := syncedCall("call-3")
	call.ProcessingStatus = entities.StatusTranscribed
	repo := newFakeCallRepo(call)
	an := &fakeAnalyzer{}
	sched := newTestScheduler(t, repo, &fakeTranscriber{}, an)

	require.NoError(t, sched.Tick(context.Background()))

	got := repo.get(call.ID)
	assert.Equal(t, entities.StatusSkipped, got.ProcessingStatus)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, "No question group assigned", *got.ProcessingError)
	assert.Equal(t, 0, an.runCount())
}

func TestTickAnalyzesTranscribedCalls(t *testing.T) {
	groupID := uuid.New()
	call := syncedCall("call-4")
	call.ProcessingStatus = entities.StatusTranscribed
	call.QuestionGroupID = &groupID
	repo := newFakeCallRepo(call)
	an := &fakeAnalyzer{}
	sched := newTestScheduler(t, repo, &fakeTranscriber{}, an)

	require.NoError(t, sched.Tick(context.Background()))

	waitForStatus(t, repo, call.ID, entities.StatusAnalyzed)
	assert.Equal(t, 1, an.runCount())
}

func TestTickAnalysisAllQuestionsFailedIsPermanent(t *testing.T) {
	groupID := uuid.New()
	call := syncedCall("call-5")
	call.ProcessingStatus = entities.StatusTranscribed
	call.QuestionGroupID = &groupID
	repo := newFakeCallRepo(call)
	an := &fakeAnalyzer{err: qa.ErrAllQuestionsFailed}

	logger := zap.NewNop()
	cfg := testPipelineConfig()
	cfg.RetryMaxAttempts = 3
	aPool := workpool.New(workpool.Options{
		Name:           "analysis",
		Parallelism:    1,
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
	}, logger)
	tPool := workpool.New(workpool.Options{Name: "transcription", Parallelism: 1, MaxAttempts: 1, InitialBackoff: time.Millisecond}, logger)
	t.Cleanup(func() {
		aPool.Shutdown()
		tPool.Shutdown()
	})
	sched := NewScheduler(repo, &fakeTranscriber{}, an, tPool, aPool, nil, cfg, logger)

	require.NoError(t, sched.Tick(context.Background()))

	waitForStatus(t, repo, call.ID, entities.StatusFailed)
	got := repo.get(call.ID)
	require.NotNil(t, got.ProcessingError)
	assert.Contains(t, *got.ProcessingError, "Analysis failed: ")
	// Terminal analysis failures are not retried by the pool.
	assert.Equal(t, 1, an.runCount())
}

func TestTickRequeuesStaleCall(t *testing.T) {
	call := syncedCall("call-6")
	call.ProcessingStatus = entities.StatusTranscribing
	call.RetryCount = 2
	past := time.Now().UTC().Add(-time.Hour)
	call.LastProcessedAt = &past
	repo := newFakeCallRepo(call)
	sched := newTestScheduler(t, repo, &fakeTranscriber{block: make(chan struct{})}, &fakeAnalyzer{})

	require.NoError(t, sched.Tick(context.Background()))

	got := repo.get(call.ID)
	assert.Equal(t, entities.StatusSynced, got.ProcessingStatus)
	assert.Equal(t, 3, got.RetryCount)
}

func TestTickFailsStaleCallAfterRetryLimit(t *testing.T) {
	call := syncedCall("call-7")
	call.ProcessingStatus = entities.StatusAnalyzing
	call.RetryCount = 3
	past := time.Now().UTC().Add(-time.Hour)
	call.LastProcessedAt = &past
	repo := newFakeCallRepo(call)
	sched := newTestScheduler(t, repo, &fakeTranscriber{}, &fakeAnalyzer{})

	require.NoError(t, sched.Tick(context.Background()))

	got := repo.get(call.ID)
	assert.Equal(t, entities.StatusFailed, got.ProcessingStatus)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, "Stale job after 4 attempts", *got.ProcessingError)
	assert.Equal(t, 4, got.RetryCount)
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	call := syncedCall("call-8")
	repo := newFakeCallRepo(call)
	tr := &fakeTranscriber{}
	logger := zap.NewNop()
	cfg := testPipelineConfig()
	pool := workpool.New(workpool.Options{Name: "transcription", Parallelism: 1, MaxAttempts: 1, InitialBackoff: time.Millisecond}, logger)
	t.Cleanup(func() { pool.Shutdown() })
	sched := NewScheduler(repo, tr, &fakeAnalyzer{}, pool, pool, deniedLocker{}, cfg, logger)

	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, entities.StatusSynced, repo.get(call.ID).ProcessingStatus)
	assert.Equal(t, 0, tr.runCount())
}

func TestTickFreshCallNotTreatedAsStale(t *testing.T) {
	call := syncedCall(fmt.Sprintf("call-%d", 9))
	call.ProcessingStatus = entities.StatusTranscribing
	now := time.Now().UTC()
	call.LastProcessedAt = &now
	repo := newFakeCallRepo(call)
	sched := newTestScheduler(t, repo, &fakeTranscriber{}, &fakeAnalyzer{})

	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, entities.StatusTranscribing, repo.get(call.ID).ProcessingStatus)
	assert.Equal(t, 0, repo.get(call.ID).RetryCount)
}
