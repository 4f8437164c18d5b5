package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash-lite"
)

// QaAnswer is the structured verdict for a single evaluation question.
type QaAnswer struct {
	ThoughtProcess string `json:"thought_process"`
	Answer         string `json:"answer"`
	Justification  string `json:"justification"`
}

// GeminiClient is a minimal Gemini client using the generateContent
// endpoint with a JSON response schema.
type GeminiClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGeminiClient creates a Gemini client. Empty baseURL and model fall
// back to the public endpoint and the default model.
func NewGeminiClient(apiKey, baseURL, model string) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// IsConfigured reports whether an API key is present.
func (c *GeminiClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

// Schema matching QaAnswer, sent with every request so the model
// returns parseable JSON.
var qaResponseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"thought_process": {
			"type": "string",
			"description": "Chain of thought analysis with quotes from transcription and logical reasoning"
		},
		"answer": {
			"type": "string",
			"description": "The selected answer from the possible answers list"
		},
		"justification": {
			"type": "string",
			"description": "One sentence explaining why this answer was chosen based on the transcription"
		}
	},
	"required": ["thought_process", "answer", "justification"]
}`)

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// APIError is a non-2xx or blocked response from Gemini.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gemini: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini: %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// GenerateAnswer evaluates one question against a system and user prompt
// and returns the structured answer. It performs a single attempt; the
// caller owns retry policy.
func (c *GeminiClient) GenerateAnswer(ctx context.Context, systemPrompt, userPrompt string) (*QaAnswer, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("gemini: API key not configured")
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   qaResponseSchema,
		},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		var parsed geminiErrorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			apiErr.Status = parsed.Error.Status
			apiErr.Message = parsed.Error.Message
		}
		return nil, apiErr
	}

	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     out.PromptFeedback.BlockReason,
			Message:    fmt.Sprintf("prompt blocked: %s", out.PromptFeedback.BlockReason),
		}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	if reason := out.Candidates[0].FinishReason; reason == "PROHIBITED_CONTENT" || reason == "SAFETY" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     reason,
			Message:    fmt.Sprintf("response blocked: %s", reason),
		}
	}

	var answer QaAnswer
	if err := json.Unmarshal([]byte(out.Candidates[0].Content.Parts[0].Text), &answer); err != nil {
		return nil, fmt.Errorf("parse structured answer: %w", err)
	}
	if answer.Answer == "" {
		return nil, fmt.Errorf("gemini returned an empty answer")
	}
	return &answer, nil
}

// IsContentBlocked reports whether err means the content was rejected by
// safety filters. Such errors must not be retried.
func IsContentBlocked(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "PROHIBITED_CONTENT") || strings.Contains(s, "SAFETY")
}

// IsRateLimited reports whether err is a quota or rate limit rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") ||
		strings.Contains(s, "quota")
}

// IsRetryable reports whether err is transient: overload, unavailability
// or rate limiting.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "overloaded") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "UNAVAILABLE") ||
		IsRateLimited(err)
}

var retryDelayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry\s+in\s+(\d+(?:\.\d+)?)\s*s`),
	regexp.MustCompile(`(?i)"retryDelay":\s*"(\d+(?:\.\d+)?)\s*s"`),
}

// RetryDelayHint extracts a server-suggested retry delay from err.
// It returns 0 when no hint is present.
func RetryDelayHint(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := err.Error()
	for _, pattern := range retryDelayPatterns {
		match := pattern.FindStringSubmatch(s)
		if match == nil {
			continue
		}
		seconds, parseErr := strconv.ParseFloat(match[1], 64)
		if parseErr != nil {
			continue
		}
		return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
	}
	return 0
}
