package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ANSWER_PROVIDER", "SPEECH_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"ELEVEN_LABS_API_KEY", "JWT_SECRET", "DEFAULT_LANGUAGE", "SILENCE_TIMEOUT", "AUTOPLAY",
		"SERVER_RECOGNITION", "SESSION_IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "CORS_ORIGINS",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "RECOGNIZER_PROVIDER",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.Port != "8080" || cfg.AnswerProvider != ProviderGemini || cfg.SpeechProvider != ProviderGemini {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.DefaultLanguage != "en-US" {
		t.Errorf("Expected en-US, got %s", cfg.DefaultLanguage)
	}
	if cfg.SilenceTimeout != 2*time.Second {
		t.Errorf("Expected 2s silence timeout, got %v", cfg.SilenceTimeout)
	}
	if cfg.RecognizerProvider != ProviderGoogle {
		t.Errorf("Expected google recognizer, got %s", cfg.RecognizerProvider)
	}
	if !cfg.AutoPlay || cfg.ServerRecognition {
		t.Errorf("Unexpected playback flags %+v", cfg)
	}
	if cfg.MissingKey() != "GEMINI_API_KEY" {
		t.Errorf("Expected GEMINI_API_KEY to be reported missing, got %q", cfg.MissingKey())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ANSWER_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SPEECH_PROVIDER", "elevenlabs")
	t.Setenv("SILENCE_TIMEOUT", "0")
	t.Setenv("AUTOPLAY", "false")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://agileassist.app ,")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.Port != "9000" || cfg.AnswerProvider != ProviderOpenAI || cfg.SpeechProvider != ProviderElevenLabs {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.SilenceTimeout != 0 || cfg.AutoPlay {
		t.Errorf("Expected silence auto-stop and autoplay disabled, got %+v", cfg)
	}
	if cfg.SessionIdleTimeout != 5*time.Minute {
		t.Errorf("Expected 5m idle timeout, got %v", cfg.SessionIdleTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://agileassist.app" {
		t.Errorf("Unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if cfg.MissingKey() != "" {
		t.Errorf("Expected backend to be configured, got %q missing", cfg.MissingKey())
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ANSWER_PROVIDER", "bedrock"},
		{"SPEECH_PROVIDER", "polly"},
		{"SILENCE_TIMEOUT", "soon"},
		{"SILENCE_TIMEOUT", "-5"},
		{"AUTOPLAY", "maybe"},
		{"SESSION_IDLE_TIMEOUT", "30"},
		{"RECOGNIZER_PROVIDER", "whisper"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestSilenceTimeoutAcceptsDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("SILENCE_TIMEOUT", "1500ms")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.SilenceTimeout != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %v", cfg.SilenceTimeout)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("DEFAULT_LANGUAGE")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DEFAULT_LANGUAGE=hi-IN\nANSWER_PROVIDER=mock\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("ANSWER_PROVIDER")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DefaultLanguage != "hi-IN" || cfg.AnswerProvider != ProviderMock {
		t.Errorf("Expected values from the env file, got %+v", cfg)
	}
	if cfg.MissingKey() != "" {
		t.Error("Mock provider needs no key")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("A missing env file should be skipped, got %v", err)
	}
}
