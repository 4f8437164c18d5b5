package daktela

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token       string
	invalidated atomic.Int32
}

func (s *staticTokens) Token(ctx context.Context) (string, error) { return s.token, nil }
func (s *staticTokens) Invalidate()                               { s.invalidated.Add(1) }

func TestLoginTokenProviderCachesToken(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v6/login.json", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qa-bot", body["username"])
		assert.Equal(t, float64(1), body["only_token"])

		logins.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"error": []any{}, "result": "token-abc"})
	}))
	defer srv.Close()

	provider := NewLoginTokenProvider(srv.URL, "qa-bot", "secret", time.Hour, srv.Client())

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-abc", token)

	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), logins.Load())

	provider.Invalidate()
	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), logins.Load())
}

func TestLoginTokenProviderReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": []any{"bad credentials"}, "result": nil})
	}))
	defer srv.Close()

	provider := NewLoginTokenProvider(srv.URL, "qa-bot", "wrong", time.Hour, srv.Client())

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestLoginTokenProviderMissingCredentials(t *testing.T) {
	provider := NewLoginTokenProvider("", "", "", time.Hour, nil)

	_, err := provider.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestListActivitiesBuildsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v6/activities.json", r.URL.Path)
		assert.Equal(t, "token-abc", r.Header.Get("X-AUTH-TOKEN"))

		q := r.URL.Query()
		assert.Equal(t, "CALL", q.Get("filter[0][value]"))
		assert.Equal(t, "statuses", q.Get("filter[1][field]"))
		assert.Equal(t, "in", q.Get("filter[1][operator]"))
		assert.Equal(t, "st-1", q.Get("filter[1][value][0]"))
		assert.Equal(t, "st-2", q.Get("filter[1][value][1]"))
		assert.Equal(t, "desc", q.Get("sort[0][dir]"))
		assert.Equal(t, "25", q.Get("take"))

		json.NewEncoder(w).Encode(map[string]any{
			"error": []any{},
			"result": map[string]any{
				"data": []map[string]any{
					{
						"name":     "activities_1001",
						"type":     "CALL",
						"time":     "2025-05-01 10:00:00",
						"duration": 312,
						"item": map[string]any{
							"id_call":  "call-1",
							"answered": true,
							"id_agent": map[string]any{"name": "jkowalski", "title": "Jan Kowalski"},
						},
					},
				},
				"total": 1,
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &staticTokens{token: "token-abc"}, srv.Client(), nil)

	activities, total, err := client.ListActivities(context.Background(), []string{"st-1", "st-2"}, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, activities, 1)
	assert.Equal(t, "activities_1001", activities[0].Name)
	require.NotNil(t, activities[0].Item)
	assert.Equal(t, "call-1", activities[0].Item.IDCall)
	require.NotNil(t, activities[0].Item.Agent)
	assert.Equal(t, "jkowalski", activities[0].Item.Agent.Name)
}

func TestFetchRecording(t *testing.T) {
	audio := []byte("RIFF-fake-audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/file/recording/activities_1001", r.URL.Path)
		assert.Equal(t, "token-abc", r.URL.Query().Get("accessToken"))
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(audio)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &staticTokens{token: "token-abc"}, srv.Client(), nil)

	data, contentType, err := client.FetchRecording(context.Background(), "activities_1001")
	require.NoError(t, err)
	assert.Equal(t, audio, data)
	assert.Equal(t, "audio/wav", contentType)
}

func TestFetchRecordingUnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "stale"}
	client := NewClient(srv.URL, tokens, srv.Client(), nil)

	_, _, err := client.FetchRecording(context.Background(), "activities_1001")
	require.Error(t, err)
	assert.Equal(t, int32(1), tokens.invalidated.Load())
}

func TestClientNotConfigured(t *testing.T) {
	client := NewClient("", nil, nil, nil)

	_, _, err := client.FetchRecording(context.Background(), "activities_1001")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, _, err = client.ListActivities(context.Background(), nil, 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
