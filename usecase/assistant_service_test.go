package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/agileassist/server/adapters/llm"
	"github.com/agileassist/server/adapters/tts"
	"github.com/agileassist/server/domain/repositories"
)

type recordingAnswers struct {
	last repositories.AnswerRequest
	err  error
}

func (r *recordingAnswers) Answer(ctx context.Context, req repositories.AnswerRequest) (repositories.Answer, error) {
	r.last = req
	if r.err != nil {
		return repositories.Answer{}, r.err
	}
	return repositories.Answer{Text: "Paris.", LanguageCode: "en-US"}, nil
}

func TestAssistantService_AnswerQuestion(t *testing.T) {
	answers := &recordingAnswers{}
	svc := NewAssistantService(answers, nil, zaptest.NewLogger(t))

	out, err := svc.AnswerQuestion(context.Background(), AnswerQuestionInput{Question: "  capital of France? ", LanguageCode: "hi-in"})
	if err != nil {
		t.Fatalf("AnswerQuestion() error: %v", err)
	}
	if out.Answer != "Paris." {
		t.Errorf("Unexpected answer %q", out.Answer)
	}
	if answers.last.Question != "capital of France?" || answers.last.LanguageCode != "hi-IN" || answers.last.Mode != repositories.AnswerModeQuestion {
		t.Errorf("Unexpected request %+v", answers.last)
	}
}

func TestAssistantService_MultilingualAssistance(t *testing.T) {
	answers := &recordingAnswers{}
	svc := NewAssistantService(answers, nil, zaptest.NewLogger(t))

	out, err := svc.MultilingualAssistance(context.Background(), MultilingualInput{Question: "What is Scrum?"})
	if err != nil {
		t.Fatalf("MultilingualAssistance() error: %v", err)
	}
	if out.LanguageCode != "en-US" {
		t.Errorf("Expected detected language, got %q", out.LanguageCode)
	}
	if answers.last.Mode != repositories.AnswerModeMultilingual || answers.last.LanguageCode != "" {
		t.Errorf("Unexpected request %+v", answers.last)
	}
}

func TestAssistantService_Validation(t *testing.T) {
	svc := NewAssistantService(&recordingAnswers{}, tts.NewMockTTS(), zaptest.NewLogger(t))
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty question", func() error {
			_, err := svc.AnswerQuestion(ctx, AnswerQuestionInput{Question: " ", LanguageCode: "en-US"})
			return err
		}},
		{"missing language", func() error {
			_, err := svc.AnswerQuestion(ctx, AnswerQuestionInput{Question: "hi"})
			return err
		}},
		{"malformed language", func() error {
			_, err := svc.MultilingualAssistance(ctx, MultilingualInput{Question: "hi", LanguageCode: "not a tag!"})
			return err
		}},
		{"empty text", func() error {
			_, err := svc.TextToSpeech(ctx, TextToSpeechInput{LanguageCode: "en-US"})
			return err
		}},
		{"speech without language", func() error {
			_, err := svc.TextToSpeech(ctx, TextToSpeechInput{Text: "hello"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAssistantService_NotConfigured(t *testing.T) {
	svc := NewAssistantService(nil, nil, zaptest.NewLogger(t))

	if svc.Configured() {
		t.Error("Expected service without providers to be unconfigured")
	}
	if _, err := svc.MultilingualAssistance(context.Background(), MultilingualInput{Question: "hi"}); !errors.Is(err, repositories.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := svc.TextToSpeech(context.Background(), TextToSpeechInput{Text: "hi", LanguageCode: "en-US"}); !errors.Is(err, repositories.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestAssistantService_ProviderErrorPassesThrough(t *testing.T) {
	quota := &repositories.ServiceError{Provider: "gemini", Message: "RESOURCE_EXHAUSTED", StatusCode: 429}
	svc := NewAssistantService(&recordingAnswers{err: quota}, nil, zaptest.NewLogger(t))

	_, err := svc.MultilingualAssistance(context.Background(), MultilingualInput{Question: "hi"})
	if repositories.StatusCode(err) != 429 {
		t.Errorf("Expected status 429 to survive, got %v", err)
	}
}

func TestAssistantService_WithMockProviders(t *testing.T) {
	svc := NewAssistantService(llm.NewMockLLM("en-US"), tts.NewMockTTS(), zaptest.NewLogger(t))

	answer, err := svc.MultilingualAssistance(context.Background(), MultilingualInput{Question: "What is a burndown chart?", LanguageCode: "te-IN"})
	if err != nil {
		t.Fatalf("MultilingualAssistance() error: %v", err)
	}

	speech, err := svc.TextToSpeech(context.Background(), TextToSpeechInput{Text: answer.Answer, LanguageCode: answer.LanguageCode})
	if err != nil {
		t.Fatalf("TextToSpeech() error: %v", err)
	}
	if !strings.HasPrefix(speech.Media, "data:audio/wav;base64,") {
		t.Errorf("Expected a WAV data URI, got %.40s", speech.Media)
	}
}
