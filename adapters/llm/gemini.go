package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/agileassist/server/domain/repositories"
)

const providerGemini = "gemini"

type geminiModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGeminiClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// GeminiLLM answers classroom questions with Google's Gemini API
type GeminiLLM struct {
	models          geminiModelsClient
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeout         time.Duration
	maxAttempts     int
	retryDelay      time.Duration
}

var _ repositories.AnswerService = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini answer provider
func NewGeminiLLM(config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := newGeminiClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiLLM(client.Models, config, logger), nil
}

func newGeminiLLM(models geminiModelsClient, config GeminiConfig, logger *zap.Logger) *GeminiLLM {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}

	return &GeminiLLM{
		models:          models,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
		maxAttempts:     defaultMaxAttempts,
		retryDelay:      time.Second,
	}
}

// Answer asks the model a single question
func (g *GeminiLLM) Answer(ctx context.Context, req repositories.AnswerRequest) (repositories.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return repositories.Answer{}, fmt.Errorf("question cannot be empty")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt(req.Question), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(req), genai.RoleUser),
		SafetySettings:    safetySettings,
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   int32(g.maxOutputTokens),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    answerSchema,
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		response, err = g.models.GenerateContent(ctx, g.model, contents, config)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < g.maxAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			case <-ctx.Done():
			}
		}
	}

	if err != nil {
		g.logger.Error("Failed to answer question", zap.Error(err))
		return repositories.Answer{}, geminiServiceError(err)
	}

	text := extractVisibleText(response)
	answer, err := parseAnswer(text, req.LanguageCode)
	if err != nil {
		g.logger.Warn("No content generated", zap.String("model", g.model))
		return repositories.Answer{}, &repositories.ServiceError{Provider: providerGemini, Message: err.Error(), Err: err}
	}

	g.logger.Info("Question answered",
		zap.String("mode", string(req.Mode)),
		zap.String("languageCode", answer.LanguageCode),
		zap.Int("answerLength", len(answer.Text)))

	return answer, nil
}

func extractVisibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func geminiAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func retryable(err error) bool {
	apiErr, ok := geminiAPIError(err)
	if !ok {
		return true
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

// geminiServiceError maps a genai failure to a ServiceError carrying the
// upstream status code
func geminiServiceError(err error) error {
	if apiErr, ok := geminiAPIError(err); ok {
		message := apiErr.Message
		if apiErr.Status != "" {
			message = apiErr.Status + ": " + message
		}
		return &repositories.ServiceError{
			Provider:   providerGemini,
			Message:    message,
			StatusCode: apiErr.Code,
			Err:        err,
		}
	}
	return &repositories.ServiceError{Provider: providerGemini, Message: err.Error(), Err: err}
}
