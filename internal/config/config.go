package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the desktop app.
type Config struct {
	Gemini   GeminiConfig
	Live     LiveConfig
	Audio    AudioConfig
	Playback PlaybackConfig
	Session  SessionConfig
	Writing  WritingConfig
	LogLevel string
}

type GeminiConfig struct {
	APIKey     string
	APIBaseURL string
	TextModel  string
}

type LiveConfig struct {
	URL   string
	Model string
	Voice string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
}

type PlaybackConfig struct {
	PlayerCommand string
}

type SessionConfig struct {
	FrameSamples      int
	MaxDecodeFailures int
}

type WritingConfig struct {
	GrammarDebounce    time.Duration
	GrammarMinInterval time.Duration
}

// Load reads an optional .env file (LINGUIST_ENV_FILE, default ./.env) and
// then resolves configuration from the environment. Variables already set in
// the environment win over the file.
func Load() (Config, error) {
	envFile := envOrDefault("LINGUIST_ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:     firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
			APIBaseURL: strings.TrimSpace(os.Getenv("LINGUIST_GEMINI_API_BASE")),
			TextModel:  envOrDefault("LINGUIST_TEXT_MODEL", "gemini-2.5-flash"),
		},
		Live: LiveConfig{
			URL:   strings.TrimSpace(os.Getenv("LINGUIST_LIVE_URL")),
			Model: envOrDefault("LINGUIST_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
			Voice: envOrDefault("LINGUIST_LIVE_VOICE", "Zephyr"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("LINGUIST_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("LINGUIST_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("LINGUIST_AUDIO_INPUT_DEVICE", "default"),
		},
		Playback: PlaybackConfig{
			PlayerCommand: envOrDefault("LINGUIST_FFPLAY_COMMAND", "ffplay"),
		},
		Session: SessionConfig{
			FrameSamples:      envOrDefaultInt("LINGUIST_FRAME_SAMPLES", 4096),
			MaxDecodeFailures: envOrDefaultInt("LINGUIST_MAX_DECODE_FAILURES", 3),
		},
		Writing: WritingConfig{
			GrammarDebounce:    time.Duration(nonNegativeInt("LINGUIST_GRAMMAR_DEBOUNCE_MS", 250)) * time.Millisecond,
			GrammarMinInterval: time.Duration(nonNegativeInt("LINGUIST_GRAMMAR_MIN_INTERVAL_MS", 200)) * time.Millisecond,
		},
		LogLevel: strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
	}

	if cfg.Session.FrameSamples < 256 {
		cfg.Session.FrameSamples = 4096
	}
	if cfg.Session.MaxDecodeFailures <= 0 {
		cfg.Session.MaxDecodeFailures = 3
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func nonNegativeInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
