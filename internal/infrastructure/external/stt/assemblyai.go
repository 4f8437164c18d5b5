// Package stt adapts speech-to-text providers to the transcription
// pipeline.
package stt

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"go.uber.org/zap"

	"github.com/inkaso/callqa/internal/domain/entities"
	"github.com/inkaso/callqa/pkg/config"
)

// Result is a completed transcription.
type Result struct {
	Text         string
	LanguageCode string
	Utterances   []entities.Utterance
}

// AssemblyAITranscriber transcribes call audio via the AssemblyAI SDK
type AssemblyAITranscriber struct {
	client       *aai.Client
	languageCode string
	keyterms     []string
	logger       *zap.Logger
}

// NewAssemblyAITranscriber creates a transcriber using the official SDK client
func NewAssemblyAITranscriber(cfg *config.AssemblyAIConfig, logger *zap.Logger) *AssemblyAITranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssemblyAITranscriber{
		client:       aai.NewClient(cfg.APIKey),
		languageCode: cfg.LanguageCode,
		keyterms:     cfg.Keyterms,
		logger:       logger,
	}
}

// Transcribe uploads the audio and waits for the finished transcript.
// Keyterms and the agent name bias recognition toward domain vocabulary.
func (t *AssemblyAITranscriber) Transcribe(ctx context.Context, audio []byte, agentName string) (*Result, error) {
	uploadURL, err := t.client.Upload(ctx, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio: %w", err)
	}

	t.logger.Info("📤 Audio uploaded for transcription",
		zap.Int("size_bytes", len(audio)),
	)

	wordBoost := append([]string(nil), t.keyterms...)
	if agentName != "" {
		wordBoost = append(wordBoost, agentName)
	}

	params := &aai.TranscriptOptionalParams{
		LanguageCode:  aai.TranscriptLanguageCode(t.languageCode),
		SpeakerLabels: aai.Bool(true),
	}
	if len(wordBoost) > 0 {
		params.WordBoost = wordBoost
	}

	transcript, err := t.client.Transcripts.SubmitFromURL(ctx, uploadURL, params)
	if err != nil {
		return nil, fmt.Errorf("failed to submit transcription: %w", err)
	}
	if transcript.ID == nil {
		return nil, fmt.Errorf("transcription submitted without an id")
	}

	t.logger.Info("🎙️ Transcription started",
		zap.String("transcript_id", *transcript.ID),
		zap.String("language", t.languageCode),
	)

	transcript, err = t.client.Transcripts.Wait(ctx, *transcript.ID)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transcription: %w", err)
	}
	if transcript.Status == aai.TranscriptStatusError {
		msg := "unknown error"
		if transcript.Error != nil {
			msg = *transcript.Error
		}
		return nil, fmt.Errorf("transcription failed: %s", msg)
	}

	result := &Result{
		LanguageCode: string(transcript.LanguageCode),
	}
	if result.LanguageCode == "" {
		result.LanguageCode = t.languageCode
	}
	if transcript.Text != nil {
		result.Text = *transcript.Text
	}
	for _, u := range transcript.Utterances {
		result.Utterances = append(result.Utterances, entities.Utterance{
			Speaker:    speakerIndex(u.Speaker),
			Transcript: derefString(u.Text),
			Start:      float64(derefInt64(u.Start)) / 1000,
			End:        float64(derefInt64(u.End)) / 1000,
		})
	}

	return result, nil
}

// speakerIndex maps AssemblyAI speaker labels ("A", "B", ...) to
// zero-based indexes.
func speakerIndex(label *string) int {
	if label == nil || *label == "" {
		return 0
	}
	s := *label
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
		return int(s[0] - 'A')
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 0
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
