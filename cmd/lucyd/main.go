package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/normanking/lucyd/internal/bus"
	"github.com/normanking/lucyd/internal/config"
	"github.com/normanking/lucyd/internal/conversation"
	"github.com/normanking/lucyd/internal/expression"
	"github.com/normanking/lucyd/internal/input"
	"github.com/normanking/lucyd/internal/llm"
	"github.com/normanking/lucyd/internal/logging"
	"github.com/normanking/lucyd/internal/persona"
	"github.com/normanking/lucyd/internal/scheduler"
	"github.com/normanking/lucyd/internal/server"
	"github.com/normanking/lucyd/internal/speechcache"
	"github.com/normanking/lucyd/internal/stt"
	"github.com/normanking/lucyd/internal/tts"
	"github.com/normanking/lucyd/internal/turn"
	"github.com/normanking/lucyd/internal/wake"
	"github.com/normanking/lucyd/internal/websearch"
)

var rootCmd = &cobra.Command{
	Use:   "lucyd",
	Short: "Lucy dialogue daemon - voice companion backend",
	Long: `lucyd runs the Lucy voice companion backend: a conversational
pipeline that keeps per-user dialogue history, talks to a local
llama.cpp server, extracts *expression* captions from replies and
caches synthesized speech.

Configuration:
  $HOME/.lucyd/config.yaml, created with defaults on first run.

Environment Variables:
  LUCYD_*           - override any config key
  OPENAI_API_KEY    - used by the whisper-api and openai providers`,
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lucyd %s\n", server.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logDir, err := cfg.LogDir()
	if err != nil {
		return err
	}
	logger, err := logging.New(&logging.Config{
		LogDir:  logDir,
		Level:   logging.LogLevel(cfg.Logging.Level),
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logger.Close()
	log := logger.Component("main")

	audioDir, err := cfg.AudioDir()
	if err != nil {
		return err
	}
	cache, err := speechcache.NewStore(audioDir, logger.Zerolog())
	if err != nil {
		return fmt.Errorf("initialize speech cache: %w", err)
	}

	prompts, err := buildPersona(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize persona: %w", err)
	}
	defer prompts.Close()

	events := bus.NewEventBus()
	orch := turn.New(turn.Options{
		Sessions: conversation.NewStore(conversation.Config{MaxExchanges: cfg.Conversation.MaxExchanges}, logger.Zerolog()),
		Parser:   expression.NewParser(),
		Cache:    cache,
		Inferer: llm.NewClient(&llm.Config{
			BaseURL:       cfg.LLM.ServerURL,
			Temperature:   cfg.LLM.Temperature,
			TopP:          cfg.LLM.TopP,
			MaxTokens:     cfg.LLM.MaxTokens,
			RepeatPenalty: cfg.LLM.RepeatPenalty,
			Timeout:       cfg.LLM.Timeout,
		}, logger.Zerolog()),
		Prompts:     prompts,
		Inputs:      input.NewProcessor(input.DefaultLimits()),
		Wake:        wake.NewDetector(cfg.Wake.Phrases),
		Events:      events,
		Transcriber: buildTranscriber(cfg, logger),
		Synthesizer: buildSynthesizer(cfg, logger),
		Search:      buildSearcher(cfg, logger),
	}, logger.Zerolog())

	sweeper, err := scheduler.NewScheduler(cache, cfg.TTS.SweepSchedule, cfg.TTS.CacheMaxAge, logger.Zerolog())
	if err != nil {
		return fmt.Errorf("initialize sweep scheduler: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(cfg, orch, events, audioDir, logger.Zerolog())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("Goodbye")
	return nil
}

func buildPersona(cfg *config.Config, logger *logging.Logger) (*persona.Manager, error) {
	if cfg.Persona.PromptFile == "" {
		return persona.NewManager(logger.Zerolog()), nil
	}
	return persona.NewManagerFromFile(cfg.Persona.PromptFile, logger.Zerolog())
}

func buildTranscriber(cfg *config.Config, logger *logging.Logger) stt.Provider {
	if !cfg.STT.Enabled {
		return nil
	}
	whisperCfg := stt.DefaultWhisperAPIConfig()
	if cfg.STT.Endpoint != "" {
		whisperCfg.Endpoint = cfg.STT.Endpoint
	}
	if cfg.STT.APIKey != "" {
		whisperCfg.APIKey = cfg.STT.APIKey
	}
	whisperCfg.Language = cfg.STT.Language
	return stt.NewWhisperAPIProvider(logger.Zerolog(), whisperCfg)
}

func buildSynthesizer(cfg *config.Config, logger *logging.Logger) tts.Provider {
	if !cfg.TTS.Enabled {
		return nil
	}
	switch cfg.TTS.Provider {
	case "openai":
		openaiCfg := tts.DefaultOpenAIConfig()
		if cfg.TTS.OpenAIAPIKey != "" {
			openaiCfg.APIKey = cfg.TTS.OpenAIAPIKey
		}
		if cfg.TTS.VoiceID != "" {
			openaiCfg.DefaultVoice = cfg.TTS.VoiceID
		}
		if cfg.TTS.Speed > 0 {
			openaiCfg.Speed = cfg.TTS.Speed
		}
		return tts.NewOpenAIProvider(logger.Zerolog(), openaiCfg)
	default:
		piperCfg := tts.DefaultPiperConfig()
		if cfg.TTS.PiperBinary != "" {
			piperCfg.BinaryPath = cfg.TTS.PiperBinary
		}
		if cfg.TTS.PiperModel != "" {
			piperCfg.DefaultVoice = cfg.TTS.PiperModel
		}
		return tts.NewPiperProvider(logger.Zerolog(), piperCfg)
	}
}

func buildSearcher(cfg *config.Config, logger *logging.Logger) *websearch.Searcher {
	if !cfg.Search.Enabled {
		return nil
	}
	return websearch.NewSearcher(websearch.Config{
		Endpoint:        cfg.Search.Endpoint,
		MaxResults:      cfg.Search.MaxResults,
		SnippetMaxChars: cfg.Search.SnippetMaxChars,
		Timeout:         cfg.Search.Timeout,
	}, logger.Zerolog())
}
