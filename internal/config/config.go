// Package config provides configuration management for lucyd
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	STT          STTConfig          `mapstructure:"stt"`
	TTS          TTSConfig          `mapstructure:"tts"`
	Wake         WakeConfig         `mapstructure:"wake"`
	Search       SearchConfig       `mapstructure:"search"`
	Persona      PersonaConfig      `mapstructure:"persona"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig configures the HTTP API server
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LLMConfig configures the chat completion backend
type LLMConfig struct {
	ServerURL     string        `mapstructure:"server_url"`
	Temperature   float64       `mapstructure:"temperature"`
	TopP          float64       `mapstructure:"top_p"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	RepeatPenalty float64       `mapstructure:"repeat_penalty"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ConversationConfig bounds per-user history
type ConversationConfig struct {
	MaxExchanges int `mapstructure:"max_exchanges"`
}

// STTConfig configures speech-to-text
type STTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"` // whisper-api
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"` // empty = auto
}

// TTSConfig configures text-to-speech and the audio cache
type TTSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Provider      string        `mapstructure:"provider"` // piper, openai
	VoiceID       string        `mapstructure:"voice_id"`
	Speed         float64       `mapstructure:"speed"`
	PiperBinary   string        `mapstructure:"piper_binary"`
	PiperModel    string        `mapstructure:"piper_model"`
	OpenAIAPIKey  string        `mapstructure:"openai_api_key"`
	CacheDir      string        `mapstructure:"cache_dir"` // empty = <config dir>/audio
	CacheMaxAge   time.Duration `mapstructure:"cache_max_age"`
	SweepSchedule string        `mapstructure:"sweep_schedule"` // cron expression
}

// WakeConfig configures wake phrase detection
type WakeConfig struct {
	Phrases []string `mapstructure:"phrases"` // empty = built-in defaults
}

// SearchConfig configures web search augmentation
type SearchConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoint        string        `mapstructure:"endpoint"`
	MaxResults      int           `mapstructure:"max_results"`
	SnippetMaxChars int           `mapstructure:"snippet_max_chars"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// PersonaConfig configures the system prompt source
type PersonaConfig struct {
	PromptFile string `mapstructure:"prompt_file"` // empty = built-in prompt
}

// LoggingConfig configures log output
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	Dir     string `mapstructure:"dir"` // empty = <config dir>/logs
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			ServerURL:     "http://localhost:8001",
			Temperature:   0.8,
			TopP:          0.9,
			MaxTokens:     200,
			RepeatPenalty: 1.1,
			Timeout:       30 * time.Second,
		},
		Conversation: ConversationConfig{
			MaxExchanges: 6,
		},
		STT: STTConfig{
			Enabled:  true,
			Provider: "whisper-api",
			Language: "",
		},
		TTS: TTSConfig{
			Enabled:       true,
			Provider:      "piper",
			Speed:         1.0,
			CacheMaxAge:   24 * time.Hour,
			SweepSchedule: "0 * * * *", // hourly
		},
		Wake: WakeConfig{
			Phrases: nil,
		},
		Search: SearchConfig{
			Enabled:         true,
			MaxResults:      3,
			SnippetMaxChars: 300,
			Timeout:         10 * time.Second,
		},
		Persona: PersonaConfig{
			PromptFile: "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("LUCYD")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("server", cfg.Server)
	viper.Set("llm", cfg.LLM)
	viper.Set("conversation", cfg.Conversation)
	viper.Set("stt", cfg.STT)
	viper.Set("tts", cfg.TTS)
	viper.Set("wake", cfg.Wake)
	viper.Set("search", cfg.Search)
	viper.Set("persona", cfg.Persona)
	viper.Set("logging", cfg.Logging)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".lucyd"), nil
}

// AudioDir returns the directory for cached synthesized audio.
func (c *Config) AudioDir() (string, error) {
	if c.TTS.CacheDir != "" {
		return c.TTS.CacheDir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audio"), nil
}

// LogDir returns the directory for log files.
func (c *Config) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}
