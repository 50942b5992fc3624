package client

import (
	"context"
	"errors"

	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/voice"
	"github.com/agileassist/server/usecase"
)

const providerLocal = "local"

var (
	_ voice.AnswerClient  = (*Local)(nil)
	_ voice.SpeechClient  = (*Local)(nil)
	_ voice.HealthChecker = (*Local)(nil)
)

// Local calls the assistant service in-process
type Local struct {
	service    *usecase.AssistantService
	missingKey string
}

// NewLocal wraps service; missingKey names the absent credential, if any
func NewLocal(service *usecase.AssistantService, missingKey string) *Local {
	return &Local{service: service, missingKey: missingKey}
}

// Ask runs the multilingual flow
func (l *Local) Ask(ctx context.Context, question, languageCode string) (repositories.Answer, error) {
	out, err := l.service.MultilingualAssistance(ctx, usecase.MultilingualInput{
		Question:     question,
		LanguageCode: languageCode,
	})
	if err != nil {
		return repositories.Answer{}, toServiceError(err)
	}
	return repositories.Answer{Text: out.Answer, LanguageCode: out.LanguageCode}, nil
}

// Synthesize runs the speech flow
func (l *Local) Synthesize(ctx context.Context, text, languageCode string) (string, error) {
	out, err := l.service.TextToSpeech(ctx, usecase.TextToSpeechInput{Text: text, LanguageCode: languageCode})
	if err != nil {
		return "", toServiceError(err)
	}
	return out.Media, nil
}

// Health reports whether the answer provider is configured
func (l *Local) Health(ctx context.Context) error {
	if l.missingKey != "" || !l.service.Configured() {
		key := l.missingKey
		if key == "" {
			key = "The answer provider"
		}
		return &ServiceError{
			Provider:   providerLocal,
			Message:    key + " is not configured.",
			StatusCode: 500,
			Err:        repositories.ErrNotConfigured,
		}
	}
	return nil
}

// toServiceError gives in-process failures the same shape as HTTP ones
func toServiceError(err error) error {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return err
	}

	status := 500
	if errors.Is(err, usecase.ErrInvalidInput) {
		status = 400
	}
	return &ServiceError{Provider: providerLocal, Message: err.Error(), StatusCode: status, Err: err}
}
