// Piper neural TTS provider using local ONNX models.
// Piper is a fast, local text-to-speech system with high quality voices.
// https://github.com/rhasspy/piper
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PiperProvider implements TTS using a local Piper binary
type PiperProvider struct {
	logger     zerolog.Logger
	config     *PiperConfig
	binaryPath string
}

// PiperConfig holds Piper TTS configuration
type PiperConfig struct {
	BinaryPath   string `json:"binary_path"`   // Path to piper binary
	ModelsDir    string `json:"models_dir"`    // Directory containing .onnx models
	DefaultVoice string `json:"default_voice"` // Default voice model (e.g., "en_US-lessac-medium")
}

// DefaultPiperConfig returns sensible defaults for Piper TTS
func DefaultPiperConfig() *PiperConfig {
	homeDir, _ := os.UserHomeDir()
	return &PiperConfig{
		ModelsDir:    filepath.Join(homeDir, ".lucyd", "piper-voices"),
		DefaultVoice: "en_US-lessac-medium",
	}
}

// NewPiperProvider creates a new Piper TTS provider
func NewPiperProvider(logger zerolog.Logger, config *PiperConfig) *PiperProvider {
	if config == nil {
		config = DefaultPiperConfig()
	}

	binaryPath := config.BinaryPath
	if binaryPath == "" {
		homeDir, _ := os.UserHomeDir()
		candidates := []string{
			filepath.Join(homeDir, ".local/bin/piper"),
			"/usr/local/bin/piper",
			"/usr/bin/piper",
			"/opt/homebrew/bin/piper",
		}
		for _, path := range candidates {
			if _, err := os.Stat(path); err == nil {
				binaryPath = path
				break
			}
		}
	}

	return &PiperProvider{
		logger:     logger.With().Str("provider", "piper-tts").Logger(),
		config:     config,
		binaryPath: binaryPath,
	}
}

// Name returns the provider identifier
func (p *PiperProvider) Name() string {
	return "piper"
}

// Health checks whether the binary and default model are present.
func (p *PiperProvider) Health(ctx context.Context) error {
	if p.binaryPath == "" {
		return fmt.Errorf("%w: piper binary not found", ErrProviderUnavailable)
	}
	if _, err := os.Stat(p.binaryPath); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	modelPath := p.modelPath(p.config.DefaultVoice)
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("%w: voice model missing: %s", ErrProviderUnavailable, modelPath)
	}
	return nil
}

// Synthesize converts text to audio using the Piper binary. The tone
// hint nudges length_scale: softer tones speak slightly slower,
// energetic ones slightly faster.
func (p *PiperProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if err := p.Health(ctx); err != nil {
		return nil, err
	}

	startTime := time.Now()

	text := sanitizeText(req.Text)
	if text == "" {
		return nil, fmt.Errorf("empty text after sanitization")
	}

	voice := req.VoiceID
	if voice == "" {
		voice = p.config.DefaultVoice
	}
	modelPath := p.modelPath(voice)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("piper model not found: %s", modelPath)
	}

	tmpFile, err := os.CreateTemp("", "piper-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"--model", modelPath,
		"-f", tmpPath,
	}
	if scale := lengthScale(req); scale != 0 {
		args = append(args, "--length_scale", fmt.Sprintf("%.2f", scale))
	}

	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	cmd.Stdin = bytes.NewBufferString(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Error().
			Err(err).
			Str("stderr", stderr.String()).
			Msg("Piper TTS failed")
		return nil, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	audioData, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	processingTime := time.Since(startTime)
	p.logger.Info().
		Str("voice", voice).
		Str("tone", req.Tone).
		Int("audioBytes", len(audioData)).
		Dur("processingTime", processingTime).
		Msg("Piper TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audioData,
		Format:         "wav",
		SampleRate:     22050, // Piper default
		ProcessingTime: processingTime,
		VoiceID:        voice,
		Provider:       p.Name(),
	}, nil
}

func (p *PiperProvider) modelPath(voice string) string {
	if strings.HasSuffix(voice, ".onnx") {
		return filepath.Join(p.config.ModelsDir, voice)
	}
	return filepath.Join(p.config.ModelsDir, voice+".onnx")
}

// lengthScale converts a speed/tone pair into Piper's length_scale
// (inverse of speed). Returns 0 when defaults should apply.
func lengthScale(req *SynthesizeRequest) float64 {
	speed := req.Speed
	if speed == 0 {
		switch req.Tone {
		case "energetic", "playful":
			speed = 1.1
		case "soft", "melancholic", "gentle":
			speed = 0.9
		default:
			return 0
		}
	}
	if speed < 0.5 {
		speed = 0.5
	}
	if speed > 2.0 {
		speed = 2.0
	}
	return 1.0 / speed
}

// sanitizeText strips characters that confuse the synthesis engine and
// collapses whitespace.
func sanitizeText(text string) string {
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "_", "")
	return strings.Join(strings.Fields(text), " ")
}
