package turn

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/lucyd/internal/bus"
	"github.com/normanking/lucyd/internal/conversation"
	"github.com/normanking/lucyd/internal/expression"
	"github.com/normanking/lucyd/internal/input"
	"github.com/normanking/lucyd/internal/llm"
	"github.com/normanking/lucyd/internal/speechcache"
	"github.com/normanking/lucyd/internal/stt"
	"github.com/normanking/lucyd/internal/tts"
	"github.com/normanking/lucyd/internal/wake"
)

type fakeInferencer struct {
	reply    string
	err      error
	calls    int
	lastOpts *llm.GenerateOptions
}

func (f *fakeInferencer) Generate(_ context.Context, _ []llm.Message, opts *llm.GenerateOptions) (string, error) {
	f.calls++
	f.lastOpts = opts
	return f.reply, f.err
}

type fakePrompts struct{}

func (fakePrompts) Prompt() string { return "You are a test companion." }

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }
func (f *fakeTranscriber) Transcribe(context.Context, *stt.TranscribeRequest) (*stt.TranscribeResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.TranscribeResponse{Text: f.text, Provider: "fake-stt"}, nil
}
func (f *fakeTranscriber) Health(context.Context) error { return nil }

type fakeSynthesizer struct {
	err   error
	calls int
}

func (f *fakeSynthesizer) Name() string { return "fake-tts" }
func (f *fakeSynthesizer) Synthesize(_ context.Context, req *tts.SynthesizeRequest) (*tts.SynthesizeResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tts.SynthesizeResponse{Audio: []byte("RIFF" + req.Text), Format: "wav", Provider: "fake-tts"}, nil
}
func (f *fakeSynthesizer) Health(context.Context) error { return nil }

type harness struct {
	orch     *Orchestrator
	sessions *conversation.Store
	inferer  *fakeInferencer
	synth    *fakeSynthesizer
}

func newHarness(t *testing.T, inferer *fakeInferencer, transcriber stt.Provider, synth *fakeSynthesizer) *harness {
	t.Helper()

	cache, err := speechcache.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	sessions := conversation.NewStore(conversation.Config{}, zerolog.Nop())
	opts := Options{
		Sessions: sessions,
		Parser:   expression.NewParser(),
		Cache:    cache,
		Inferer:  inferer,
		Prompts:  fakePrompts{},
		Inputs:   input.NewProcessor(input.Limits{}),
		Wake:     wake.NewDetector(nil),
		Events:   bus.NewEventBus(),
	}
	if transcriber != nil {
		opts.Transcriber = transcriber
	}
	if synth != nil {
		opts.Synthesizer = synth
	}
	return &harness{
		orch:     New(opts, zerolog.Nop()),
		sessions: sessions,
		inferer:  inferer,
		synth:    synth,
	}
}

func validAudio() []byte {
	return bytes.Repeat([]byte{0x42}, 256)
}

func TestOrchestrator_Text(t *testing.T) {
	inferer := &fakeInferencer{reply: "*smile*\nOh hey!\n*giggle*\nGood to see you."}
	synth := &fakeSynthesizer{}
	h := newHarness(t, inferer, nil, synth)

	resp, err := h.orch.Text(context.Background(), TextRequest{UserID: "alice", Text: "  hi   there "})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.UserText)
	assert.Equal(t, []string{"smile", "giggle"}, resp.Expressions)
	assert.Equal(t, "Oh hey! Good to see you.", resp.Text)
	assert.Equal(t, inferer.reply, resp.RawText)
	assert.Equal(t, "warm", resp.Tone)
	assert.NotEmpty(t, resp.AudioPath)
	assert.Equal(t, 1, synth.calls)

	history := h.sessions.History("alice")
	require.Len(t, history, 2)
	assert.Equal(t, conversation.RoleUser, history[0].Role)
	assert.Equal(t, "hi there", history[0].Content)
	assert.Equal(t, conversation.RoleAssistant, history[1].Role)
	assert.Equal(t, inferer.reply, history[1].Content, "raw reply with tags is stored")
}

func TestOrchestrator_Text_RepeatHitsCache(t *testing.T) {
	inferer := &fakeInferencer{reply: "*smile*\nSame answer."}
	synth := &fakeSynthesizer{}
	h := newHarness(t, inferer, nil, synth)

	first, err := h.orch.Text(context.Background(), TextRequest{UserID: "u", Text: "ping"})
	require.NoError(t, err)
	second, err := h.orch.Text(context.Background(), TextRequest{UserID: "u", Text: "ping again"})
	require.NoError(t, err)

	assert.Equal(t, first.AudioPath, second.AudioPath)
	assert.Equal(t, 1, synth.calls, "identical clean text synthesizes once")
}

func TestOrchestrator_Text_InferenceFailureLeavesHistoryUntouched(t *testing.T) {
	inferer := &fakeInferencer{err: llm.ErrUnreachable}
	h := newHarness(t, inferer, nil, nil)

	h.sessions.AddExchange("bob", "earlier", "reply")
	before := h.sessions.History("bob")

	_, err := h.orch.Text(context.Background(), TextRequest{UserID: "bob", Text: "hello?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrUnreachable))

	assert.Equal(t, before, h.sessions.History("bob"), "failed turn must not be recorded")
}

func TestOrchestrator_Text_SynthesisFailureDegradesToTextOnly(t *testing.T) {
	inferer := &fakeInferencer{reply: "*smile*\nStill talking."}
	synth := &fakeSynthesizer{err: tts.ErrEngineFailure}
	h := newHarness(t, inferer, nil, synth)

	resp, err := h.orch.Text(context.Background(), TextRequest{UserID: "carol", Text: "hello"})
	require.NoError(t, err, "synthesis failure must not fail the turn")

	assert.Empty(t, resp.AudioPath)
	assert.Equal(t, "Still talking.", resp.Text)
	require.Len(t, h.sessions.History("carol"), 2, "exchange is still recorded")
}

func TestOrchestrator_Text_SamplingOverrides(t *testing.T) {
	inferer := &fakeInferencer{reply: "ok"}
	h := newHarness(t, inferer, nil, nil)

	_, err := h.orch.Text(context.Background(), TextRequest{UserID: "u", Text: "hi"})
	require.NoError(t, err)
	assert.Nil(t, inferer.lastOpts, "no overrides means client defaults")

	_, err = h.orch.Text(context.Background(), TextRequest{UserID: "u", Text: "hi again", Temperature: 0.3, MaxTokens: 64})
	require.NoError(t, err)
	require.NotNil(t, inferer.lastOpts)
	assert.Equal(t, 0.3, inferer.lastOpts.Temperature)
	assert.Equal(t, 64, inferer.lastOpts.MaxTokens)
}

func TestOrchestrator_Text_EmptyInput(t *testing.T) {
	h := newHarness(t, &fakeInferencer{reply: "x"}, nil, nil)

	_, err := h.orch.Text(context.Background(), TextRequest{UserID: "u", Text: "   "})
	assert.True(t, errors.Is(err, input.ErrEmptyText))
	assert.Equal(t, 0, h.inferer.calls)
}

func TestOrchestrator_Speech(t *testing.T) {
	inferer := &fakeInferencer{reply: "*happy*\nI heard you!"}
	h := newHarness(t, inferer, &fakeTranscriber{text: "can you hear me"}, nil)

	resp, err := h.orch.Speech(context.Background(), SpeechRequest{UserID: "dave", Audio: validAudio(), Filename: "clip.wav"})
	require.NoError(t, err)

	assert.Equal(t, "can you hear me", resp.UserText)
	assert.Equal(t, "I heard you!", resp.Text)
	assert.Equal(t, []string{"happy"}, resp.Expressions)
}

func TestOrchestrator_Speech_NoTranscriber(t *testing.T) {
	h := newHarness(t, &fakeInferencer{reply: "x"}, nil, nil)

	_, err := h.orch.Speech(context.Background(), SpeechRequest{UserID: "u", Audio: validAudio()})
	assert.True(t, errors.Is(err, ErrTranscriptionUnavailable))
}

func TestOrchestrator_Speech_RejectsTinyAudio(t *testing.T) {
	h := newHarness(t, &fakeInferencer{reply: "x"}, &fakeTranscriber{text: "hi"}, nil)

	_, err := h.orch.Speech(context.Background(), SpeechRequest{UserID: "u", Audio: []byte("tiny")})
	assert.True(t, errors.Is(err, input.ErrAudioTooSmall))
}

func TestOrchestrator_Wake(t *testing.T) {
	h := newHarness(t, &fakeInferencer{reply: "x"}, &fakeTranscriber{text: "Hey, Lucy! Are you there?"}, nil)

	result, err := h.orch.Wake(context.Background(), SpeechRequest{UserID: "u", Audio: validAudio()})
	require.NoError(t, err)
	assert.True(t, result.Detected)
	assert.Equal(t, "Hey, Lucy! Are you there?", result.Transcript)
}

func TestOrchestrator_Wake_NoSpeechIsNegative(t *testing.T) {
	h := newHarness(t, &fakeInferencer{reply: "x"}, &fakeTranscriber{err: stt.ErrNoSpeech}, nil)

	result, err := h.orch.Wake(context.Background(), SpeechRequest{UserID: "u", Audio: validAudio()})
	require.NoError(t, err)
	assert.False(t, result.Detected)
}

func TestOrchestrator_ClearHistory(t *testing.T) {
	inferer := &fakeInferencer{reply: "reply"}
	h := newHarness(t, inferer, nil, nil)

	_, err := h.orch.Text(context.Background(), TextRequest{UserID: "eve", Text: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, h.orch.History("eve").History)

	h.orch.ClearHistory("eve")
	export := h.orch.History("eve")
	assert.Empty(t, export.History)
	assert.NotNil(t, export.Metadata.ClearedAt)
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{nil, CategoryOK},
		{input.ErrEmptyText, CategoryInput},
		{stt.ErrNoSpeech, CategoryInput},
		{llm.ErrTimeout, CategoryCollaborator},
		{tts.ErrEngineFailure, CategoryCollaborator},
		{ErrTranscriptionUnavailable, CategoryUnavailable},
		{errors.New("boom"), CategoryInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Categorize(tc.err), "err=%v", tc.err)
	}
}
