// Package llm provides a client for OpenAI-compatible chat completion
// servers such as llama.cpp.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Failure categories the orchestrator distinguishes. Wrapped errors
// carry request detail; match with errors.Is.
var (
	ErrUnreachable       = errors.New("LLM server unreachable")
	ErrTimeout           = errors.New("LLM request timed out")
	ErrMalformedResponse = errors.New("malformed LLM response")
)

// Message is one role-tagged entry in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures the LLM client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8001".
	BaseURL       string
	Temperature   float64
	TopP          float64
	MaxTokens     int
	RepeatPenalty float64
	Timeout       time.Duration
}

// DefaultConfig returns sensible defaults for a local llama.cpp server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:8001",
		Temperature:   0.8,
		TopP:          0.9,
		MaxTokens:     200,
		RepeatPenalty: 1.1,
		Timeout:       30 * time.Second,
	}
}

// GenerateOptions override per-request sampling parameters. Zero
// values fall back to the client config.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new LLM client.
func NewClient(config *Config, logger zerolog.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With().Str("component", "llm-client").Logger(),
	}
}

type chatRequest struct {
	Messages      []Message `json:"messages"`
	Temperature   float64   `json:"temperature"`
	TopP          float64   `json:"top_p"`
	MaxTokens     int       `json:"max_tokens"`
	RepeatPenalty float64   `json:"repeat_penalty,omitempty"`
	Stream        bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate submits the ordered messages and returns the completion
// text. Failures map to ErrUnreachable, ErrTimeout or
// ErrMalformedResponse; the client never retries.
func (c *Client) Generate(ctx context.Context, messages []Message, opts *GenerateOptions) (string, error) {
	temperature := c.config.Temperature
	maxTokens := c.config.MaxTokens
	if opts != nil {
		if opts.Temperature > 0 {
			temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
	}

	payload := chatRequest{
		Messages:      messages,
		Temperature:   temperature,
		TopP:          c.config.TopP,
		MaxTokens:     maxTokens,
		RepeatPenalty: c.config.RepeatPenalty,
		Stream:        false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.config.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.config.Timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrMalformedResponse, resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	c.logger.Debug().
		Int("messages", len(messages)).
		Dur("latency", time.Since(start)).
		Msg("Completion received")

	return result.Choices[0].Message.Content, nil
}

// CheckHealth reports whether the server responds on /health.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ModelInfo fetches the server's model list, or nil when unavailable.
func (c *Client) ModelInfo(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil
	}
	return info
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
