package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
	ProviderGoogle     = "google"
	ProviderMock       = "mock"
)

const (
	defaultPort               = "8080"
	defaultLanguage           = "en-US"
	defaultSilenceTimeout     = 2000 * time.Millisecond
	defaultSessionIdleTimeout = 30 * time.Minute
	defaultShutdownTimeout    = 10 * time.Second
)

// Config holds server and client configuration
type Config struct {
	Port               string
	AnswerProvider     string
	SpeechProvider     string
	GeminiAPIKey       string
	OpenAIAPIKey       string
	ElevenLabsAPIKey   string
	JWTSecret          string
	DefaultLanguage    string
	SilenceTimeout     time.Duration
	AutoPlay           bool
	ServerRecognition  bool
	RecognizerProvider string
	SessionIdleTimeout time.Duration
	ShutdownTimeout    time.Duration
	CORSOrigins        []string
	LogLevel           string
	LogFormat          string
	LogFile            string
}

// Load reads .env files (missing ones are skipped) and then the environment
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables with defaults
func FromEnv() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", defaultPort),
		AnswerProvider:     strings.ToLower(getEnv("ANSWER_PROVIDER", ProviderGemini)),
		SpeechProvider:     strings.ToLower(getEnv("SPEECH_PROVIDER", ProviderGemini)),
		RecognizerProvider: strings.ToLower(getEnv("RECOGNIZER_PROVIDER", ProviderGoogle)),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey:   os.Getenv("ELEVEN_LABS_API_KEY"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", defaultLanguage),
		CORSOrigins:        splitList(os.Getenv("CORS_ORIGINS")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.SilenceTimeout, err = getMillis("SILENCE_TIMEOUT", defaultSilenceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", defaultSessionIdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AutoPlay, err = getBool("AUTOPLAY", true); err != nil {
		return Config{}, err
	}
	if cfg.ServerRecognition, err = getBool("SERVER_RECOGNITION", false); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks provider names
func (c Config) Validate() error {
	switch c.AnswerProvider {
	case ProviderGemini, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown ANSWER_PROVIDER %q", c.AnswerProvider)
	}
	switch c.SpeechProvider {
	case ProviderGemini, ProviderElevenLabs, ProviderMock:
	default:
		return fmt.Errorf("unknown SPEECH_PROVIDER %q", c.SpeechProvider)
	}
	switch c.RecognizerProvider {
	case "", ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("unknown RECOGNIZER_PROVIDER %q", c.RecognizerProvider)
	}
	if c.SilenceTimeout < 0 {
		return fmt.Errorf("SILENCE_TIMEOUT must not be negative")
	}
	return nil
}

// MissingKey names the credential the answer provider needs but lacks,
// or returns "" when the backend is configured
func (c Config) MissingKey() string {
	switch c.AnswerProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return "GEMINI_API_KEY"
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return "OPENAI_API_KEY"
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getMillis accepts a bare number of milliseconds or a Go duration
func getMillis(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
