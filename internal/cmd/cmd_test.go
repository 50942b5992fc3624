package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/agileassist/server/adapters/llm"
	"github.com/agileassist/server/adapters/tts"
	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/api"
	"github.com/agileassist/server/internal/auth"
	"github.com/agileassist/server/internal/config"
	"github.com/agileassist/server/internal/websocket"
	"github.com/agileassist/server/usecase"
)

func newBackend(t *testing.T, missingKey string) string {
	t.Helper()
	logger := zaptest.NewLogger(t)

	signer, err := auth.NewSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner() error: %v", err)
	}
	hub := websocket.NewHub(websocket.Dependencies{}, websocket.Settings{}, logger)

	e := api.NewEcho(nil, logger)
	api.InitRoutes(e, api.Dependencies{
		Assistant:       usecase.NewAssistantService(llm.NewMockLLM("en-US"), tts.NewMockTTS(), logger),
		Hub:             hub,
		Signer:          signer,
		MissingKey:      missingKey,
		DefaultLanguage: "en-US",
	}, logger)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server.URL
}

func runRootCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		audioDir = ""
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestChat(t *testing.T) {
	url := newBackend(t, "")
	dir := t.TempDir()

	out, err := runRootCmd(t, "What is a retrospective?\n/quit\n", "chat", "--url", url, "--audio-dir", dir)
	if err != nil {
		t.Fatalf("chat error: %v\n%s", err, out)
	}

	if !strings.Contains(out, entities.WelcomeText) {
		t.Errorf("Expected the welcome text, got:\n%s", out)
	}
	if !strings.Contains(out, "[en-US] Thanks for asking!") {
		t.Errorf("Expected the answer, got:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(dir, entities.WelcomeMessageID+".wav")); err != nil {
		t.Errorf("Welcome audio not saved: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.wav"))
	if len(files) != 2 {
		t.Errorf("Expected welcome and answer audio, got %v", files)
	}
}

func TestChat_BackendNotConfigured(t *testing.T) {
	url := newBackend(t, "GEMINI_API_KEY")

	out, err := runRootCmd(t, "hello\n", "chat", "--url", url)
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY is not configured.") {
		t.Errorf("Expected a not configured error, got %v", err)
	}
	if !strings.Contains(out, "Backend not configured") {
		t.Errorf("Expected the configuration notice, got:\n%s", out)
	}
}

func TestNewProviders(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.Config{AnswerProvider: config.ProviderMock, SpeechProvider: config.ProviderMock, DefaultLanguage: "en-US"}

	answers, err := newAnswerService(cfg, logger)
	if err != nil || answers == nil {
		t.Fatalf("newAnswerService() = %v, %v", answers, err)
	}
	if _, err := answers.Answer(context.Background(), repositories.AnswerRequest{Question: "What is WIP?"}); err != nil {
		t.Errorf("Mock answer failed: %v", err)
	}

	speech, err := newSpeechService(cfg, logger)
	if err != nil || speech == nil {
		t.Fatalf("newSpeechService() = %v, %v", speech, err)
	}

	cfg.AnswerProvider = config.ProviderOpenAI
	if answers, err := newAnswerService(cfg, logger); err == nil || answers != nil {
		t.Errorf("Expected an error without OPENAI_API_KEY, got %v", answers)
	}
}

func TestNewSignerRandomSecret(t *testing.T) {
	logger := zaptest.NewLogger(t)

	a, err := newSigner(config.Config{}, logger)
	if err != nil {
		t.Fatalf("newSigner() error: %v", err)
	}
	b, _ := newSigner(config.Config{}, logger)

	issued, err := a.IssueSessionToken("en-US")
	if err != nil {
		t.Fatalf("IssueSessionToken() error: %v", err)
	}
	if _, err := b.ValidateToken(issued.Token); err == nil {
		t.Error("Random secrets should differ between signers")
	}
}
