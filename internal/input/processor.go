// Package input validates and normalizes user text and audio before
// any external call is made.
package input

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors. These are caller mistakes, never retried.
var (
	ErrEmptyText     = errors.New("empty text input")
	ErrTextTooLong   = errors.New("text too long")
	ErrAudioTooLarge = errors.New("audio file too large")
	ErrAudioTooSmall = errors.New("audio file too small or corrupted")
)

// Limits bound accepted inputs.
type Limits struct {
	MaxTextChars  int
	MaxAudioBytes int
	MinAudioBytes int
}

// DefaultLimits returns the standard input bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxTextChars:  1000,
		MaxAudioBytes: 10 << 20, // 10 MB
		MinAudioBytes: 100,
	}
}

// Processor validates inbound text and audio.
type Processor struct {
	limits Limits
}

// NewProcessor creates a processor with the given limits; zero fields
// fall back to defaults.
func NewProcessor(limits Limits) *Processor {
	def := DefaultLimits()
	if limits.MaxTextChars <= 0 {
		limits.MaxTextChars = def.MaxTextChars
	}
	if limits.MaxAudioBytes <= 0 {
		limits.MaxAudioBytes = def.MaxAudioBytes
	}
	if limits.MinAudioBytes <= 0 {
		limits.MinAudioBytes = def.MinAudioBytes
	}
	return &Processor{limits: limits}
}

// ProcessText trims and collapses whitespace, then validates bounds.
func (p *Processor) ProcessText(text string) (string, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", ErrEmptyText
	}
	if len(text) > p.limits.MaxTextChars {
		return "", fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, len(text), p.limits.MaxTextChars)
	}
	return text, nil
}

// ValidateAudio checks size bounds on an uploaded audio file.
func (p *Processor) ValidateAudio(audio []byte) error {
	if len(audio) > p.limits.MaxAudioBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrAudioTooLarge, len(audio), p.limits.MaxAudioBytes)
	}
	if len(audio) < p.limits.MinAudioBytes {
		return ErrAudioTooSmall
	}
	return nil
}

// IsInputError reports whether err is an input validation failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrTextTooLong) ||
		errors.Is(err, ErrAudioTooLarge) ||
		errors.Is(err, ErrAudioTooSmall)
}
