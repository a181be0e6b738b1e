package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WhisperAPIProvider implements STT against a Whisper-compatible
// transcription endpoint (OpenAI's API or a local faster-whisper
// server exposing the same contract).
type WhisperAPIProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *WhisperAPIConfig
}

// WhisperAPIConfig holds Whisper API configuration
type WhisperAPIConfig struct {
	Endpoint string        `json:"endpoint"` // Transcription URL
	APIKey   string        `json:"api_key"`  // Bearer token; optional for local servers
	Model    string        `json:"model"`    // "whisper-1" or a local model name
	Language string        `json:"language"` // Optional language hint
	Timeout  time.Duration `json:"timeout"`
}

// DefaultWhisperAPIConfig returns sensible defaults
func DefaultWhisperAPIConfig() *WhisperAPIConfig {
	return &WhisperAPIConfig{
		Endpoint: "https://api.openai.com/v1/audio/transcriptions",
		Model:    "whisper-1",
		Language: "", // Auto-detect
		Timeout:  30 * time.Second,
	}
}

// NewWhisperAPIProvider creates a new Whisper API provider
func NewWhisperAPIProvider(logger zerolog.Logger, config *WhisperAPIConfig) *WhisperAPIProvider {
	if config == nil {
		config = DefaultWhisperAPIConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &WhisperAPIProvider{
		apiKey: apiKey,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With().Str("provider", "whisper-api").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *WhisperAPIProvider) Name() string {
	return "whisper-api"
}

// Transcribe uploads the audio file and returns the transcript.
// An empty transcript maps to ErrNoSpeech.
func (p *WhisperAPIProvider) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	startTime := time.Now()

	if len(req.Audio) == 0 {
		return nil, ErrAudioTooShort
	}

	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", p.config.Model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	language := req.Language
	if language == "" {
		language = p.config.Language
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcription request failed: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, ErrNoSpeech
	}

	processingTime := time.Since(startTime)
	p.logger.Debug().
		Int("audioBytes", len(req.Audio)).
		Int("textLen", len(text)).
		Dur("processingTime", processingTime).
		Msg("Transcription complete")

	return &TranscribeResponse{
		Text:           text,
		Language:       result.Language,
		ProcessingTime: processingTime,
		Provider:       p.Name(),
	}, nil
}

// Health checks whether the provider is usable.
func (p *WhisperAPIProvider) Health(ctx context.Context) error {
	if strings.Contains(p.config.Endpoint, "api.openai.com") && p.apiKey == "" {
		return fmt.Errorf("%w: API key not configured", ErrProviderUnavailable)
	}
	return nil
}
