// Package tts provides text-to-speech synthesis for assistant replies.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrEngineFailure       = errors.New("TTS engine failure")
	ErrTextTooLong         = errors.New("text exceeds maximum length")
)

// Provider is the interface all TTS providers must implement
type Provider interface {
	// Name returns the provider identifier (e.g., "piper", "openai")
	Name() string

	// Synthesize converts text to audio
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error
}

// SynthesizeRequest represents a synthesis request
type SynthesizeRequest struct {
	Text    string  `json:"text"`
	Tone    string  `json:"tone,omitempty"`     // Delivery hint (warm, playful, ...); advisory
	VoiceID string  `json:"voice_id,omitempty"` // Provider voice; empty = default
	Speed   float64 `json:"speed,omitempty"`    // 0.5 to 2.0; 0 = default
}

// SynthesizeResponse represents a synthesis result
type SynthesizeResponse struct {
	Audio          []byte        `json:"-"`
	Format         string        `json:"format"`      // wav, mp3
	SampleRate     int           `json:"sample_rate"` // Sample rate in Hz
	ProcessingTime time.Duration `json:"processing_time"`
	VoiceID        string        `json:"voice_id"`
	Provider       string        `json:"provider"`
}
