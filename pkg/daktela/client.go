// Package daktela is a minimal client for the Daktela v6 REST API,
// covering activity listing and call recording download.
package daktela

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the client was built without credentials.
var ErrNotConfigured = fmt.Errorf("daktela: client not configured")

// TokenProvider supplies an access token for API calls. Implementations
// must be safe for concurrent use.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached token so the next call re-authenticates.
	Invalidate()
}

// LoginTokenProvider obtains tokens via the login endpoint and caches
// them until they expire.
type LoginTokenProvider struct {
	baseURL  string
	login    string
	password string
	ttl      time.Duration
	client   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewLoginTokenProvider creates a provider that authenticates with the
// given credentials. Tokens are cached for ttl.
func NewLoginTokenProvider(baseURL, login, password string, ttl time.Duration, client *http.Client) *LoginTokenProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LoginTokenProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		login:    login,
		password: password,
		ttl:      ttl,
		client:   client,
	}
}

type loginResponse struct {
	Error  []json.RawMessage `json:"error"`
	Result string            `json:"result"`
}

// Token returns a cached token or logs in for a fresh one.
func (p *LoginTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}

	if p.baseURL == "" || p.login == "" || p.password == "" {
		return "", fmt.Errorf("%w: missing credentials", ErrNotConfigured)
	}

	payload, err := json.Marshal(map[string]any{
		"username":   p.login,
		"password":   p.password,
		"only_token": 1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v6/login.json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: %s", resp.Status)
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if len(body.Error) > 0 {
		return "", fmt.Errorf("login rejected: %s", rawErrors(body.Error))
	}
	if body.Result == "" {
		return "", fmt.Errorf("login returned no token")
	}

	p.token = body.Result
	p.expiresAt = time.Now().Add(p.ttl)
	return p.token, nil
}

// Invalidate drops the cached token.
func (p *LoginTokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiresAt = time.Time{}
}

func rawErrors(raw []json.RawMessage) string {
	parts := make([]string, len(raw))
	for i, r := range raw {
		parts[i] = string(r)
	}
	return strings.Join(parts, "; ")
}

// Status is an activity status tag.
type Status struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Agent identifies the handling agent of a call.
type Agent struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Extension string `json:"extension,omitempty"`
}

// Queue identifies the queue a call arrived on.
type Queue struct {
	Name  json.Number `json:"name"`
	Title string      `json:"title"`
}

// CallItem carries the call-specific part of an activity.
type CallItem struct {
	IDCall    string `json:"id_call"`
	CallTime  string `json:"call_time"`
	Direction string `json:"direction"`
	Answered  bool   `json:"answered"`
	CLID      string `json:"clid,omitempty"`
	Queue     *Queue `json:"id_queue,omitempty"`
	Agent     *Agent `json:"id_agent,omitempty"`
}

// Contact is the activity's contact record.
type Contact struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
	Account   *struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	} `json:"account,omitempty"`
}

// Activity is a Daktela activity record.
type Activity struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Action   string    `json:"action"`
	Time     string    `json:"time"`
	Duration int       `json:"duration"`
	Statuses []Status  `json:"statuses"`
	Item     *CallItem `json:"item,omitempty"`
	Contact  *Contact  `json:"contact,omitempty"`
}

type activitiesResponse struct {
	Error  []json.RawMessage `json:"error"`
	Result struct {
		Data  []Activity `json:"data"`
		Total int        `json:"total"`
	} `json:"result"`
}

// Client calls the Daktela REST API.
type Client struct {
	baseURL string
	tokens  TokenProvider
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the given instance URL.
func NewClient(baseURL string, tokens TokenProvider, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  httpClient,
		logger:  logger,
	}
}

// IsConfigured reports whether the client has an instance URL and tokens.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != "" && c.tokens != nil
}

// ListActivities returns CALL activities carrying any of the given status
// IDs, newest first.
func (c *Client) ListActivities(ctx context.Context, statusIDs []string, take int) ([]Activity, int, error) {
	if !c.IsConfigured() {
		return nil, 0, ErrNotConfigured
	}
	if take <= 0 {
		take = 100
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	params := url.Values{}
	params.Set("filter[0][field]", "type")
	params.Set("filter[0][operator]", "eq")
	params.Set("filter[0][value]", "CALL")
	params.Set("filter[1][field]", "statuses")
	params.Set("filter[1][operator]", "in")
	for i, id := range statusIDs {
		params.Set(fmt.Sprintf("filter[1][value][%d]", i), id)
	}
	params.Set("sort[0][field]", "time")
	params.Set("sort[0][dir]", "desc")
	params.Set("take", strconv.Itoa(take))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v6/activities.json?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create activities request: %w", err)
	}
	req.Header.Set("X-AUTH-TOKEN", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("activities request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, 0, fmt.Errorf("activities request unauthorized: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, 0, fmt.Errorf("activities request failed: %s - %s", resp.Status, string(body))
	}

	var body activitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("decode activities response: %w", err)
	}
	if len(body.Error) > 0 {
		return nil, 0, fmt.Errorf("activities request rejected: %s", rawErrors(body.Error))
	}

	return body.Result.Data, body.Result.Total, nil
}

// FetchRecording downloads the audio for an activity. It returns the
// audio bytes and the content type reported by the server.
func (c *Client) FetchRecording(ctx context.Context, activityName string) ([]byte, string, error) {
	if !c.IsConfigured() {
		return nil, "", ErrNotConfigured
	}
	if activityName == "" {
		return nil, "", fmt.Errorf("activity name is required")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, "", err
	}

	recordingURL := fmt.Sprintf("%s/file/recording/%s?accessToken=%s",
		c.baseURL, url.PathEscape(activityName), url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create recording request: %w", err)
	}
	req.Header.Set("Accept", "audio/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("recording request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, "", fmt.Errorf("recording request unauthorized: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("recording request failed: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read recording body: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("recording %s is empty", activityName)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return audio, contentType, nil
}
