package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/agileassist/server/domain/repositories"
)

const (
	providerOpenAI       = "openai"
	openAIDefaultAPIURL  = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
	openAIDefaultTimeout = 30
)

// OpenAIConfig holds configuration for the OpenAI-compatible answer provider
type OpenAIConfig struct {
	APIKey         string
	APIURL         string
	Model          string
	Temperature    float64
	TimeoutSeconds int
}

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if strings.TrimSpace(config.APIKey) == "" {
		return fmt.Errorf("openai API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}
	return nil
}

// NewOpenAIConfigFromEnv reads OPENAI_* environment variables
func NewOpenAIConfigFromEnv() OpenAIConfig {
	return OpenAIConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		APIURL: os.Getenv("OPENAI_BASE_URL"),
		Model:  os.Getenv("OPENAI_MODEL"),
	}
}

// OpenAILLM answers questions through any OpenAI-compatible chat completions API
type OpenAILLM struct {
	client      openai.Client
	logger      *zap.Logger
	model       string
	temperature float64
}

var _ repositories.AnswerService = (*OpenAILLM)(nil)

// NewOpenAILLM creates a new OpenAI answer provider
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = openAIDefaultAPIURL
		logger.Info("Using default API URL", zap.String("apiURL", apiURL))
	}

	model := config.Model
	if model == "" {
		model = openAIDefaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = openAIDefaultTimeout
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(apiURL),
		option.WithHTTPClient(&http.Client{Timeout: time.Duration(timeout) * time.Second}),
		option.WithMaxRetries(defaultMaxAttempts-1),
	)

	return &OpenAILLM{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: config.Temperature,
	}, nil
}

// Answer asks the model a single question
func (o *OpenAILLM) Answer(ctx context.Context, req repositories.AnswerRequest) (repositories.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return repositories.Answer{}, fmt.Errorf("question cannot be empty")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req)),
			openai.UserMessage(userPrompt(req.Question)),
		},
	}
	if o.temperature > 0 {
		params.Temperature = openai.Float(o.temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Error("Failed to answer question", zap.Error(err))
		return repositories.Answer{}, openAIServiceError(err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	answer, err := parseAnswer(content, req.LanguageCode)
	if err != nil {
		return repositories.Answer{}, &repositories.ServiceError{Provider: providerOpenAI, Message: err.Error(), Err: err}
	}

	o.logger.Info("Question answered",
		zap.String("mode", string(req.Mode)),
		zap.String("model", resp.Model),
		zap.String("languageCode", answer.LanguageCode))

	return answer, nil
}

func openAIServiceError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}
		return &repositories.ServiceError{
			Provider:   providerOpenAI,
			Message:    message,
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return &repositories.ServiceError{Provider: providerOpenAI, Message: err.Error(), Err: err}
}
