package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/internal/infrastructure/external/stt"
	"github.com/inkaso/callqa/internal/infrastructure/storage"
)

type fakeTranscriptRepo struct {
	byCallID map[string]*entities.Transcript
	deleted  []string
}

func newFakeTranscriptRepo() *fakeTranscriptRepo {
	return &fakeTranscriptRepo{byCallID: map[string]*entities.Transcript{}}
}

func (f *fakeTranscriptRepo) GetByCallID(ctx context.Context, callID string) (*entities.Transcript, error) {
	return f.byCallID[callID], nil
}

func (f *fakeTranscriptRepo) Upsert(ctx context.Context, transcript *entities.Transcript) error {
	f.byCallID[transcript.CallID] = transcript
	return nil
}

func (f *fakeTranscriptRepo) DeleteByCallID(ctx context.Context, callID string) error {
	f.deleted = append(f.deleted, callID)
	delete(f.byCallID, callID)
	return nil
}

func (f *fakeTranscriptRepo) SaveHumanReview(ctx context.Context, callID string, review entities.HumanReview) error {
	return nil
}

type fakeAgentRepo struct {
	agents map[uuid.UUID]*entities.Agent
}

func (f *fakeAgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Agent, error) {
	return f.agents[id], nil
}

func (f *fakeAgentRepo) GetOrCreate(ctx context.Context, username, displayName string, extension *string) (*entities.Agent, error) {
	return nil, errors.New("not used")
}

func (f *fakeAgentRepo) List(ctx context.Context) ([]entities.Agent, error) { return nil, nil }

type fakeFetcher struct {
	audio   []byte
	err     error
	fetches int
}

func (f *fakeFetcher) FetchRecording(ctx context.Context, activityName string) ([]byte, string, error) {
	f.fetches++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.audio, "audio/mpeg", nil
}

type fakeArchive struct {
	objects map[string][]byte
	puts    int
	gets    int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string][]byte{}}
}

func (f *fakeArchive) Get(ctx context.Context, activityName string) ([]byte, string, error) {
	f.gets++
	audio, ok := f.objects[activityName]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return audio, "audio/mpeg", nil
}

func (f *fakeArchive) Put(ctx context.Context, activityName string, audio []byte, contentType string) error {
	f.puts++
	f.objects[activityName] = audio
	return nil
}

func (f *fakeArchive) Delete(ctx context.Context, activityName string) error {
	delete(f.objects, activityName)
	return nil
}

type fakeTranscriber struct {
	result    *stt.Result
	err       error
	agentName string
	runs      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, agentName string) (*stt.Result, error) {
	f.runs++
	f.agentName = agentName
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testCall(agentID *uuid.UUID) *entities.CallRecord {
	call := entities.NewCallRecord("call-1", "activities_1001", time.Now(), 180)
	call.AgentID = agentID
	return call
}

func sttResult() *stt.Result {
	return &stt.Result{
		Text:         "Dzień dobry, firma Inkaso.",
		LanguageCode: "pl",
		Utterances: []entities.Utterance{
			{Speaker: 0, Transcript: "Dzień dobry, firma Inkaso.", Start: 0.5, End: 2.1},
		},
	}
}

func TestTranscribeStoresTranscript(t *testing.T) {
	repo := newFakeTranscriptRepo()
	agentID := uuid.New()
	agents := &fakeAgentRepo{agents: map[uuid.UUID]*entities.Agent{
		agentID: {ID: agentID, Username: "jkowalski", DisplayName: "Jan Kowalski"},
	}}
	fetcher := &fakeFetcher{audio: []byte("audio")}
	transcriber := &fakeTranscriber{result: sttResult()}

	svc := NewService(repo, agents, fetcher, nil, transcriber, nil)

	transcript, fromCache, err := svc.Transcribe(context.Background(), testCall(&agentID), false)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "call-1", transcript.CallID)
	assert.Equal(t, "pl", transcript.LanguageCode)
	require.Len(t, transcript.Utterances, 1)
	assert.Equal(t, "Jan Kowalski", transcriber.agentName)
	assert.NotNil(t, repo.byCallID["call-1"])
}

func TestTranscribeReturnsCachedTranscript(t *testing.T) {
	repo := newFakeTranscriptRepo()
	repo.byCallID["call-1"] = &entities.Transcript{CallID: "call-1", Text: "cached"}
	fetcher := &fakeFetcher{audio: []byte("audio")}
	transcriber := &fakeTranscriber{result: sttResult()}

	svc := NewService(repo, &fakeAgentRepo{}, fetcher, nil, transcriber, nil)

	transcript, fromCache, err := svc.Transcribe(context.Background(), testCall(nil), false)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, "cached", transcript.Text)
	assert.Equal(t, 0, fetcher.fetches)
	assert.Equal(t, 0, transcriber.runs)
}

func TestTranscribeForceDeletesAndRetranscribes(t *testing.T) {
	repo := newFakeTranscriptRepo()
	repo.byCallID["call-1"] = &entities.Transcript{CallID: "call-1", Text: "old"}
	fetcher := &fakeFetcher{audio: []byte("audio")}
	transcriber := &fakeTranscriber{result: sttResult()}

	svc := NewService(repo, &fakeAgentRepo{}, fetcher, nil, transcriber, nil)

	transcript, fromCache, err := svc.Transcribe(context.Background(), testCall(nil), true)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, []string{"call-1"}, repo.deleted)
	assert.Equal(t, 1, transcriber.runs)
	assert.NotEqual(t, "old", transcript.Text)
}

func TestTranscribeArchivesDownloadedAudio(t *testing.T) {
	repo := newFakeTranscriptRepo()
	fetcher := &fakeFetcher{audio: []byte("audio")}
	archive := newFakeArchive()
	transcriber := &fakeTranscriber{result: sttResult()}

	svc := NewService(repo, &fakeAgentRepo{}, fetcher, archive, transcriber, nil)

	_, _, err := svc.Transcribe(context.Background(), testCall(nil), false)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.fetches)
	assert.Equal(t, 1, archive.puts)

	// Second pass (forced) hits the archive, not the platform
	_, _, err = svc.Transcribe(context.Background(), testCall(nil), true)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.fetches)
	assert.Equal(t, 2, archive.gets)
}

func TestTranscribePropagatesFetchError(t *testing.T) {
	repo := newFakeTranscriptRepo()
	fetcher := &fakeFetcher{err: errors.New("recording request failed: 404 Not Found")}
	transcriber := &fakeTranscriber{result: sttResult()}

	svc := NewService(repo, &fakeAgentRepo{}, fetcher, nil, transcriber, nil)

	_, _, err := svc.Transcribe(context.Background(), testCall(nil), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch recording")
	assert.Empty(t, repo.byCallID)
}

func TestTranscribePropagatesSTTError(t *testing.T) {
	repo := newFakeTranscriptRepo()
	fetcher := &fakeFetcher{audio: []byte("audio")}
	transcriber := &fakeTranscriber{err: errors.New("transcription failed: audio too short")}

	svc := NewService(repo, &fakeAgentRepo{}, fetcher, nil, transcriber, nil)

	_, _, err := svc.Transcribe(context.Background(), testCall(nil), false)
	require.Error(t, err)
	assert.Empty(t, repo.byCallID)
}
