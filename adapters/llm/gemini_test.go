package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/agileassist/server/domain/repositories"
)

type stubModelsClient struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	gotModel  string
	gotConfig *genai.GenerateContentConfig
	gotText   string
}

func (s *stubModelsClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	idx := s.calls
	s.calls++
	s.gotModel = model
	s.gotConfig = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		s.gotText = contents[0].Parts[0].Text
	}

	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return nil, err
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	if len(s.responses) > 0 {
		return s.responses[len(s.responses)-1], nil
	}
	return nil, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func newTestGemini(t *testing.T, stub *stubModelsClient) *GeminiLLM {
	t.Helper()
	g := newGeminiLLM(stub, GeminiConfig{APIKey: "test-key"}, zaptest.NewLogger(t))
	g.retryDelay = 0
	return g
}

func TestNewGeminiLLM_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiLLM(GeminiConfig{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("Expected error when API key is missing")
	}
}

func TestNewGeminiLLM_ForwardsAPIKey(t *testing.T) {
	origNewClient := newGeminiClient
	defer func() {
		newGeminiClient = origNewClient
	}()

	var gotClientCfg *genai.ClientConfig
	newGeminiClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
		gotClientCfg = cfg
		return &genai.Client{}, nil
	}

	g, err := NewGeminiLLM(GeminiConfig{APIKey: "test-key"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGeminiLLM() error: %v", err)
	}
	if gotClientCfg == nil || gotClientCfg.APIKey != "test-key" {
		t.Fatalf("Expected API key to be forwarded, got %+v", gotClientCfg)
	}
	if gotClientCfg.Backend != genai.BackendGeminiAPI {
		t.Errorf("Expected Gemini API backend, got %v", gotClientCfg.Backend)
	}
	if g.model != defaultModel {
		t.Errorf("Expected default model %q, got %q", defaultModel, g.model)
	}
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{name: "valid", config: GeminiConfig{APIKey: "k"}},
		{name: "missing key", config: GeminiConfig{}, wantErr: true},
		{name: "temperature too high", config: GeminiConfig{APIKey: "k", Temperature: 1.5}, wantErr: true},
		{name: "negative tokens", config: GeminiConfig{APIKey: "k", MaxOutputTokens: -1}, wantErr: true},
		{name: "negative timeout", config: GeminiConfig{APIKey: "k", TimeoutSeconds: -5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeminiConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeminiAnswer_Multilingual(t *testing.T) {
	stub := &stubModelsClient{
		responses: []*genai.GenerateContentResponse{
			textResponse(`{"answer":"வணக்கம்","languageCode":"ta-in"}`),
		},
	}
	g := newTestGemini(t, stub)

	answer, err := g.Answer(context.Background(), repositories.AnswerRequest{
		Question: "Say hello in Tamil",
		Mode:     repositories.AnswerModeMultilingual,
	})
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}

	if answer.Text != "வணக்கம்" {
		t.Errorf("Unexpected answer %q", answer.Text)
	}
	if answer.LanguageCode != "ta-IN" {
		t.Errorf("Expected canonical ta-IN, got %q", answer.LanguageCode)
	}

	cfg := stub.gotConfig
	if cfg == nil {
		t.Fatal("Expected config to be sent")
	}
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Error("Expected JSON response schema")
	}
	if len(cfg.SafetySettings) != 4 {
		t.Fatalf("Expected 4 safety settings, got %d", len(cfg.SafetySettings))
	}
	for _, s := range cfg.SafetySettings {
		if s.Category == genai.HarmCategoryDangerousContent && s.Threshold != genai.HarmBlockThresholdBlockNone {
			t.Errorf("Unexpected dangerous content threshold %v", s.Threshold)
		}
	}
	if cfg.SystemInstruction == nil {
		t.Error("Expected system instruction")
	}
	if stub.gotText != "User's Question: Say hello in Tamil\n\nAnswer:" {
		t.Errorf("Unexpected prompt %q", stub.gotText)
	}
}

func TestGeminiAnswer_QuestionModeFallsBackToRequestedLanguage(t *testing.T) {
	stub := &stubModelsClient{
		responses: []*genai.GenerateContentResponse{textResponse("Plain text reply")},
	}
	g := newTestGemini(t, stub)

	answer, err := g.Answer(context.Background(), repositories.AnswerRequest{
		Question:     "What is Scrum?",
		LanguageCode: "hi-IN",
		Mode:         repositories.AnswerModeQuestion,
	})
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if answer.Text != "Plain text reply" || answer.LanguageCode != "hi-IN" {
		t.Errorf("Unexpected answer %+v", answer)
	}
}

func TestGeminiAnswer_RetriesTransientFailures(t *testing.T) {
	stub := &stubModelsClient{
		errs:      []error{genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded"}},
		responses: []*genai.GenerateContentResponse{nil, textResponse(`{"answer":"ok","languageCode":"en-US"}`)},
	}
	g := newTestGemini(t, stub)

	answer, err := g.Answer(context.Background(), repositories.AnswerRequest{Question: "hi"})
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", stub.calls)
	}
	if answer.Text != "ok" {
		t.Errorf("Unexpected answer %q", answer.Text)
	}
}

func TestGeminiAnswer_MapsQuotaErrors(t *testing.T) {
	quota := genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"}
	stub := &stubModelsClient{errs: []error{quota, quota, quota}}
	g := newTestGemini(t, stub)

	_, err := g.Answer(context.Background(), repositories.AnswerRequest{Question: "hi"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if stub.calls != defaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", defaultMaxAttempts, stub.calls)
	}
	if !repositories.IsRateLimited(err) {
		t.Errorf("Expected rate limited error, got %v", err)
	}
	if repositories.StatusCode(err) != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", repositories.StatusCode(err))
	}
}

func TestGeminiAnswer_DoesNotRetryClientErrors(t *testing.T) {
	stub := &stubModelsClient{errs: []error{&genai.APIError{Code: http.StatusBadRequest, Message: "bad"}}}
	g := newTestGemini(t, stub)

	_, err := g.Answer(context.Background(), repositories.AnswerRequest{Question: "hi"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if stub.calls != 1 {
		t.Errorf("Expected a single attempt, got %d", stub.calls)
	}
	var serviceErr *repositories.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected ServiceError with status 400, got %v", err)
	}
}

func TestGeminiAnswer_EmptyReply(t *testing.T) {
	stub := &stubModelsClient{responses: []*genai.GenerateContentResponse{{}}}
	g := newTestGemini(t, stub)

	if _, err := g.Answer(context.Background(), repositories.AnswerRequest{Question: "hi"}); err == nil {
		t.Error("Expected error for empty reply")
	}
}

func TestGeminiAnswer_RejectsEmptyQuestion(t *testing.T) {
	stub := &stubModelsClient{}
	g := newTestGemini(t, stub)

	if _, err := g.Answer(context.Background(), repositories.AnswerRequest{Question: "   "}); err == nil {
		t.Error("Expected error for empty question")
	}
	if stub.calls != 0 {
		t.Errorf("Expected no model call, got %d", stub.calls)
	}
}
