package turn

import (
	"errors"

	"github.com/normanking/lucyd/internal/input"
	"github.com/normanking/lucyd/internal/llm"
	"github.com/normanking/lucyd/internal/speechcache"
	"github.com/normanking/lucyd/internal/stt"
	"github.com/normanking/lucyd/internal/tts"
)

// Category classifies a turn failure for HTTP mapping and metrics.
type Category int

const (
	// CategoryOK means the turn succeeded.
	CategoryOK Category = iota
	// CategoryInput is a caller mistake; retrying unchanged cannot help.
	CategoryInput
	// CategoryCollaborator is a failure of a backing engine (LLM, STT,
	// TTS) that was configured but did not deliver.
	CategoryCollaborator
	// CategoryUnavailable means a required engine was never configured.
	CategoryUnavailable
	// CategoryInternal is everything else.
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryOK:
		return "ok"
	case CategoryInput:
		return "input_error"
	case CategoryCollaborator:
		return "collaborator_error"
	case CategoryUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// Categorize maps an error from a turn to its failure category.
func Categorize(err error) Category {
	switch {
	case err == nil:
		return CategoryOK
	case input.IsInputError(err),
		errors.Is(err, speechcache.ErrEmptyText),
		errors.Is(err, stt.ErrNoSpeech),
		errors.Is(err, stt.ErrAudioTooShort):
		return CategoryInput
	case errors.Is(err, ErrTranscriptionUnavailable),
		errors.Is(err, ErrSynthesisUnavailable),
		errors.Is(err, stt.ErrProviderUnavailable),
		errors.Is(err, tts.ErrProviderUnavailable):
		return CategoryUnavailable
	case errors.Is(err, llm.ErrUnreachable),
		errors.Is(err, llm.ErrTimeout),
		errors.Is(err, llm.ErrMalformedResponse),
		errors.Is(err, stt.ErrTimeout),
		errors.Is(err, tts.ErrEngineFailure):
		return CategoryCollaborator
	default:
		return CategoryInternal
	}
}
