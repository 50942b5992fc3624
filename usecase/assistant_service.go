package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/agileassist/server/domain/repositories"
)

// ErrInvalidInput marks a request rejected by validation
var ErrInvalidInput = errors.New("invalid input")

// AnswerQuestionInput is the payload of the answerQuestion action
type AnswerQuestionInput struct {
	Question     string `json:"question"`
	LanguageCode string `json:"languageCode"`
}

// MultilingualInput is the payload of the multilingualAssistance action
type MultilingualInput struct {
	Question     string `json:"question"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// TextToSpeechInput is the payload of the textToSpeech action
type TextToSpeechInput struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// AnswerOutput is returned by both answering flows
type AnswerOutput struct {
	Answer       string `json:"answer"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// TextToSpeechOutput carries a data URI of the synthesized audio
type TextToSpeechOutput struct {
	Media string `json:"media"`
}

// AssistantService runs the answering and speech flows behind /gen-ai
type AssistantService struct {
	answers repositories.AnswerService
	speech  repositories.SpeechService
	logger  *zap.Logger
}

// NewAssistantService creates the service; a nil provider makes its flows
// return repositories.ErrNotConfigured
func NewAssistantService(answers repositories.AnswerService, speech repositories.SpeechService, logger *zap.Logger) *AssistantService {
	return &AssistantService{
		answers: answers,
		speech:  speech,
		logger:  logger,
	}
}

// Configured reports whether the answer provider is available
func (s *AssistantService) Configured() bool {
	return s.answers != nil
}

// AnswerQuestion answers in the requested language
func (s *AssistantService) AnswerQuestion(ctx context.Context, in AnswerQuestionInput) (AnswerOutput, error) {
	question, err := requireText("question", in.Question)
	if err != nil {
		return AnswerOutput{}, err
	}
	lang, err := validLanguage(in.LanguageCode, true)
	if err != nil {
		return AnswerOutput{}, err
	}

	return s.answer(ctx, repositories.AnswerRequest{
		Question:     question,
		LanguageCode: lang,
		Mode:         repositories.AnswerModeQuestion,
	})
}

// MultilingualAssistance answers in the language of the question and reports it
func (s *AssistantService) MultilingualAssistance(ctx context.Context, in MultilingualInput) (AnswerOutput, error) {
	question, err := requireText("question", in.Question)
	if err != nil {
		return AnswerOutput{}, err
	}
	lang, err := validLanguage(in.LanguageCode, false)
	if err != nil {
		return AnswerOutput{}, err
	}

	return s.answer(ctx, repositories.AnswerRequest{
		Question:     question,
		LanguageCode: lang,
		Mode:         repositories.AnswerModeMultilingual,
	})
}

// TextToSpeech synthesizes text in the given language
func (s *AssistantService) TextToSpeech(ctx context.Context, in TextToSpeechInput) (TextToSpeechOutput, error) {
	text, err := requireText("text", in.Text)
	if err != nil {
		return TextToSpeechOutput{}, err
	}
	lang, err := validLanguage(in.LanguageCode, true)
	if err != nil {
		return TextToSpeechOutput{}, err
	}
	if s.speech == nil {
		return TextToSpeechOutput{}, repositories.ErrNotConfigured
	}

	speech, err := s.speech.Synthesize(ctx, repositories.SpeechRequest{Text: text, LanguageCode: lang})
	if err != nil {
		s.logger.Warn("Speech synthesis failed",
			zap.String("lang", lang),
			zap.Int("status", repositories.StatusCode(err)),
			zap.Error(err))
		return TextToSpeechOutput{}, err
	}

	s.logger.Debug("Speech synthesized",
		zap.String("lang", lang),
		zap.Int("mediaBytes", len(speech.Media)))
	return TextToSpeechOutput{Media: speech.Media}, nil
}

func (s *AssistantService) answer(ctx context.Context, req repositories.AnswerRequest) (AnswerOutput, error) {
	if s.answers == nil {
		return AnswerOutput{}, repositories.ErrNotConfigured
	}

	answer, err := s.answers.Answer(ctx, req)
	if err != nil {
		s.logger.Warn("Answer provider failed",
			zap.String("mode", string(req.Mode)),
			zap.Int("status", repositories.StatusCode(err)),
			zap.Error(err))
		return AnswerOutput{}, err
	}

	s.logger.Debug("Question answered",
		zap.String("mode", string(req.Mode)),
		zap.String("lang", answer.LanguageCode))
	return AnswerOutput{Answer: answer.Text, LanguageCode: answer.LanguageCode}, nil
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return value, nil
}

func validLanguage(tag string, required bool) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		if required {
			return "", fmt.Errorf("%w: languageCode is required", ErrInvalidInput)
		}
		return "", nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("%w: languageCode %q is not a valid BCP-47 tag", ErrInvalidInput, tag)
	}
	return parsed.String(), nil
}
