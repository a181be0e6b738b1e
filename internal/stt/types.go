// Package stt provides speech-to-text transcription for user audio.
package stt

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("STT provider unavailable")
	ErrNoSpeech            = errors.New("no speech detected in audio")
	ErrAudioTooShort       = errors.New("audio too short for transcription")
	ErrTimeout             = errors.New("transcription timeout")
)

// Provider is the interface all STT providers must implement
type Provider interface {
	// Name returns the provider identifier (e.g., "whisper-api")
	Name() string

	// Transcribe converts audio to text
	Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error
}

// TranscribeRequest represents a transcription request
type TranscribeRequest struct {
	Audio    []byte `json:"-"`                  // Encoded audio file data (wav, mp3, ogg, flac)
	Filename string `json:"filename,omitempty"` // Original filename, used for format detection
	Language string `json:"language,omitempty"` // Language hint (e.g., "en"), empty = auto
}

// TranscribeResponse represents a transcription result
type TranscribeResponse struct {
	Text           string        `json:"text"`
	Language       string        `json:"language,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Provider       string        `json:"provider"`
}
