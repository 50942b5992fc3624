package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agileassist/server/domain/repositories"
)

// MockLLM is an offline answer provider for development and tests
type MockLLM struct {
	defaultLanguage string
}

var _ repositories.AnswerService = (*MockLLM)(nil)

// NewMockLLM creates a new mock answer provider
func NewMockLLM(defaultLanguage string) *MockLLM {
	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	return &MockLLM{defaultLanguage: defaultLanguage}
}

// Answer echoes the question back in a canned reply
func (m *MockLLM) Answer(ctx context.Context, req repositories.AnswerRequest) (repositories.Answer, error) {
	if err := ctx.Err(); err != nil {
		return repositories.Answer{}, err
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return repositories.Answer{}, fmt.Errorf("question cannot be empty")
	}

	lang := CanonicalLanguage(req.LanguageCode)
	if lang == "" {
		lang = m.defaultLanguage
	}

	return repositories.Answer{
		Text:         fmt.Sprintf("Thanks for asking! You said: %q. This is a sample answer from AgileAssist.", question),
		LanguageCode: lang,
	}, nil
}
