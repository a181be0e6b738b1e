// Package turn orchestrates one dialogue turn end to end: validate the
// input, build the model context, generate a reply, extract expressions
// and synthesize speech for the clean text.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/lucyd/internal/bus"
	"github.com/normanking/lucyd/internal/conversation"
	"github.com/normanking/lucyd/internal/expression"
	"github.com/normanking/lucyd/internal/input"
	"github.com/normanking/lucyd/internal/llm"
	"github.com/normanking/lucyd/internal/metrics"
	"github.com/normanking/lucyd/internal/speechcache"
	"github.com/normanking/lucyd/internal/stt"
	"github.com/normanking/lucyd/internal/tts"
	"github.com/normanking/lucyd/internal/wake"
	"github.com/normanking/lucyd/internal/websearch"
)

// Sentinel errors for engines that were never configured. These are
// deployment gaps, not transient failures.
var (
	ErrTranscriptionUnavailable = errors.New("no speech-to-text engine configured")
	ErrSynthesisUnavailable     = errors.New("no text-to-speech engine configured")
)

// Inferencer generates a completion for an ordered message sequence.
// *llm.Client satisfies it; tests substitute fakes.
type Inferencer interface {
	Generate(ctx context.Context, messages []llm.Message, opts *llm.GenerateOptions) (string, error)
}

// PromptSource serves the current system prompt.
type PromptSource interface {
	Prompt() string
}

// TextRequest is one text dialogue turn. Temperature and MaxTokens
// override the client defaults when non-zero.
type TextRequest struct {
	UserID      string  `json:"user_id"`
	Text        string  `json:"text"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// SpeechRequest is one spoken dialogue turn.
type SpeechRequest struct {
	UserID   string
	Audio    []byte
	Filename string
	Language string
}

// Response is the outcome of a completed turn.
type Response struct {
	UserID      string   `json:"user_id"`
	UserText    string   `json:"user_text"`             // normalized input (or transcript)
	Text        string   `json:"text"`                  // reply with expression tags removed
	RawText     string   `json:"raw_text"`              // reply as generated
	Expressions []string `json:"expressions"`           // animation triggers, in order
	Tone        string   `json:"tone,omitempty"`        // delivery hint derived from expressions
	AudioPath   string   `json:"audio_path,omitempty"`  // cached audio file; empty when synthesis failed or is off
	SearchUsed  bool     `json:"search_used,omitempty"` // reply was grounded with web results
}

// WakeResult is the outcome of a wake check on an audio snippet.
type WakeResult struct {
	Detected   bool   `json:"detected"`
	Transcript string `json:"transcript"`
}

// Orchestrator runs the dialogue pipeline. STT, TTS and web search are
// optional; a missing engine degrades the corresponding capability
// instead of failing construction.
type Orchestrator struct {
	sessions *conversation.Store
	parser   *expression.Parser
	cache    *speechcache.Store
	inferer  Inferencer
	prompts  PromptSource
	inputs   *input.Processor
	wake     *wake.Detector
	events   *bus.EventBus
	logger   zerolog.Logger

	transcriber stt.Provider        // nil when speech input is off
	synthesizer tts.Provider        // nil when speech output is off
	search      *websearch.Searcher // nil when augmentation is off
}

// Options carries the orchestrator's collaborators. Sessions, Parser,
// Cache, Inferer, Prompts, Inputs, Wake and Events are required.
type Options struct {
	Sessions *conversation.Store
	Parser   *expression.Parser
	Cache    *speechcache.Store
	Inferer  Inferencer
	Prompts  PromptSource
	Inputs   *input.Processor
	Wake     *wake.Detector
	Events   *bus.EventBus

	Transcriber stt.Provider
	Synthesizer tts.Provider
	Search      *websearch.Searcher
}

// New creates a turn orchestrator.
func New(opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:    opts.Sessions,
		parser:      opts.Parser,
		cache:       opts.Cache,
		inferer:     opts.Inferer,
		prompts:     opts.Prompts,
		inputs:      opts.Inputs,
		wake:        opts.Wake,
		events:      opts.Events,
		transcriber: opts.Transcriber,
		synthesizer: opts.Synthesizer,
		search:      opts.Search,
		logger:      logger.With().Str("component", "turn").Logger(),
	}
}

// Text runs one text turn: validate, optionally augment with web
// results, generate, parse expressions, record the exchange, then
// synthesize speech for the clean text. History is only written after
// a successful generation, and a synthesis failure degrades the turn
// to text-only rather than failing it.
func (o *Orchestrator) Text(ctx context.Context, req TextRequest) (*Response, error) {
	processed, err := o.inputs.ProcessText(req.Text)
	if err != nil {
		o.recordOutcome("text", err)
		return nil, err
	}

	o.events.Publish(bus.Event{Type: bus.EventTypeTurnStarted, Data: map[string]any{
		"user_id": req.UserID,
	}})

	modelInput := processed
	searchUsed := false
	if o.search != nil {
		if block, ok := o.search.Augment(ctx, processed); ok {
			modelInput = processed + "\n\n" + block
			searchUsed = true
		}
	}

	messages := toModelMessages(o.sessions.FormatForModel(req.UserID, o.prompts.Prompt(), modelInput))

	var opts *llm.GenerateOptions
	if req.Temperature > 0 || req.MaxTokens > 0 {
		opts = &llm.GenerateOptions{Temperature: req.Temperature, MaxTokens: req.MaxTokens}
	}

	start := time.Now()
	raw, err := o.inferer.Generate(ctx, messages, opts)
	if err != nil {
		o.recordOutcome("text", err)
		o.events.Publish(bus.Event{Type: bus.EventTypeTurnFailed, Data: map[string]any{
			"user_id": req.UserID,
			"error":   err.Error(),
		}})
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	metrics.InferenceLatency.Observe(time.Since(start).Seconds())

	expressions, clean := o.parser.Parse(raw)

	// The raw reply is stored so the model sees its own expression tags
	// as prior context and keeps producing them.
	o.sessions.AddExchange(req.UserID, processed, raw)
	metrics.ActiveSessions.Set(float64(o.sessions.SessionCount()))

	resp := &Response{
		UserID:      req.UserID,
		UserText:    processed,
		Text:        clean,
		RawText:     raw,
		Expressions: expressions,
		Tone:        expression.ToneHint(expressions),
		SearchUsed:  searchUsed,
	}

	if o.synthesizer != nil && clean != "" {
		path, err := o.cache.GetOrSynthesize(ctx, clean, expressions, o.synthesize)
		if err != nil {
			o.logger.Warn().Err(err).Str("user", req.UserID).Msg("Synthesis failed, turn degrades to text-only")
		} else {
			resp.AudioPath = path
			o.events.Publish(bus.Event{Type: bus.EventTypeSpeechCached, Data: map[string]any{
				"user_id": req.UserID,
				"path":    path,
			}})
		}
	}

	o.recordOutcome("text", nil)
	o.events.Publish(bus.Event{Type: bus.EventTypeTurnCompleted, Data: map[string]any{
		"user_id":     req.UserID,
		"expressions": expressions,
		"search_used": searchUsed,
	}})

	o.logger.Info().
		Str("user", req.UserID).
		Int("expressions", len(expressions)).
		Bool("audio", resp.AudioPath != "").
		Bool("search", searchUsed).
		Msg("Turn completed")
	return resp, nil
}

// Speech runs one spoken turn: validate the audio, transcribe it, then
// run the transcript through the text pipeline.
func (o *Orchestrator) Speech(ctx context.Context, req SpeechRequest) (*Response, error) {
	transcript, err := o.transcribe(ctx, req)
	if err != nil {
		o.recordOutcome("speech", err)
		return nil, err
	}

	resp, err := o.Text(ctx, TextRequest{UserID: req.UserID, Text: transcript})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Wake transcribes an audio snippet and checks it for a wake phrase.
func (o *Orchestrator) Wake(ctx context.Context, req SpeechRequest) (*WakeResult, error) {
	transcript, err := o.transcribe(ctx, req)
	if err != nil {
		// Silence is a negative result, not a failure.
		if errors.Is(err, stt.ErrNoSpeech) {
			return &WakeResult{}, nil
		}
		return nil, err
	}

	detected := o.wake.Detect(transcript)
	if detected {
		metrics.WakeDetections.Inc()
		o.events.Publish(bus.Event{Type: bus.EventTypeWakeDetected, Data: map[string]any{
			"user_id":    req.UserID,
			"transcript": transcript,
		}})
		o.logger.Info().Str("user", req.UserID).Msg("Wake phrase detected")
	}
	return &WakeResult{Detected: detected, Transcript: transcript}, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, req SpeechRequest) (string, error) {
	if err := o.inputs.ValidateAudio(req.Audio); err != nil {
		return "", err
	}
	if o.transcriber == nil {
		return "", ErrTranscriptionUnavailable
	}

	result, err := o.transcriber.Transcribe(ctx, &stt.TranscribeRequest{
		Audio:    req.Audio,
		Filename: req.Filename,
		Language: req.Language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	o.events.Publish(bus.Event{Type: bus.EventTypeTranscript, Data: map[string]any{
		"user_id": req.UserID,
		"text":    result.Text,
	}})
	return result.Text, nil
}

// synthesize adapts the TTS provider to the cache's synthesis callback,
// deriving the delivery tone from the reply's expressions.
func (o *Orchestrator) synthesize(ctx context.Context, text string, expressions []string) ([]byte, error) {
	result, err := o.synthesizer.Synthesize(ctx, &tts.SynthesizeRequest{
		Text: text,
		Tone: expression.ToneHint(expressions),
	})
	if err != nil {
		return nil, err
	}
	o.events.Publish(bus.Event{Type: bus.EventTypeSpeechSynthesized, Data: map[string]any{
		"provider": result.Provider,
		"bytes":    len(result.Audio),
	}})
	return result.Audio, nil
}

// History returns the full conversation state for a user.
func (o *Orchestrator) History(userID string) conversation.Export {
	return o.sessions.ExportHistory(userID)
}

// ClearHistory resets a user's conversation.
func (o *Orchestrator) ClearHistory(userID string) {
	o.sessions.Clear(userID)
	o.events.Publish(bus.Event{Type: bus.EventTypeSessionCleared, Data: map[string]any{
		"user_id": userID,
	}})
}

// WakePhrases exposes the wake detector for phrase management.
func (o *Orchestrator) WakePhrases() *wake.Detector {
	return o.wake
}

// Status summarizes engine availability for health reporting.
type Status struct {
	LLM          bool   `json:"llm"`
	STT          string `json:"stt,omitempty"`
	TTS          string `json:"tts,omitempty"`
	Sessions     int    `json:"sessions"`
	CachedAudio  int    `json:"cached_audio"`
	SearchActive bool   `json:"search_active"`
}

// Status probes configured engines. STT/TTS report the provider name
// when healthy, "unavailable" when probing fails, empty when off.
func (o *Orchestrator) Status(ctx context.Context) Status {
	s := Status{
		Sessions:     o.sessions.SessionCount(),
		CachedAudio:  o.cache.Len(),
		SearchActive: o.search != nil,
	}

	if hc, ok := o.inferer.(interface{ CheckHealth(context.Context) bool }); ok {
		s.LLM = hc.CheckHealth(ctx)
	}
	if o.transcriber != nil {
		s.STT = o.transcriber.Name()
		if err := o.transcriber.Health(ctx); err != nil {
			s.STT = "unavailable"
		}
	}
	if o.synthesizer != nil {
		s.TTS = o.synthesizer.Name()
		if err := o.synthesizer.Health(ctx); err != nil {
			s.TTS = "unavailable"
		}
	}
	return s
}

// recordOutcome tracks per-turn outcome counts by failure category.
func (o *Orchestrator) recordOutcome(kind string, err error) {
	metrics.TurnCount.WithLabelValues(kind, Categorize(err).String()).Inc()
}

func toModelMessages(turns []conversation.Turn) []llm.Message {
	messages := make([]llm.Message, len(turns))
	for i, t := range turns {
		messages[i] = llm.Message{Role: string(t.Role), Content: t.Content}
	}
	return messages
}
