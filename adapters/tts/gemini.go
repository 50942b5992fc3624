package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/agileassist/server/domain/repositories"
)

const (
	providerGemini       = "gemini"
	defaultGeminiModel   = "gemini-2.5-flash-preview-tts"
	defaultGeminiTimeout = 60 * time.Second
)

// voiceForLanguage maps a language tag to the prebuilt voice requested from
// the speech model
func voiceForLanguage(languageCode string) string {
	switch languageCode {
	case "hi-IN":
		return "en-IN-Wavenet-A"
	case "ta-IN":
		return "ta-IN-Wavenet-A"
	case "te-IN":
		return "te-IN-Standard-A"
	default:
		return "en-US-News-K"
	}
}

type geminiModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGeminiClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// GeminiTTSConfig holds configuration for the Gemini speech provider
type GeminiTTSConfig struct {
	APIKey  string // Required
	Model   string // Optional, default "gemini-2.5-flash-preview-tts"
	Timeout time.Duration
}

// ValidateGeminiTTSConfig validates the GeminiTTSConfig
func ValidateGeminiTTSConfig(config GeminiTTSConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("google AI API key is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewGeminiTTSConfigFromEnv reads GEMINI_API_KEY and GEMINI_TTS_MODEL
func NewGeminiTTSConfigFromEnv() GeminiTTSConfig {
	return GeminiTTSConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_TTS_MODEL"),
	}
}

// GeminiTTS synthesizes speech with a Gemini audio model
type GeminiTTS struct {
	models  geminiModelsClient
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ repositories.SpeechService = (*GeminiTTS)(nil)

// NewGeminiTTS creates a new Gemini speech provider
func NewGeminiTTS(config GeminiTTSConfig, logger *zap.Logger) (*GeminiTTS, error) {
	if err := ValidateGeminiTTSConfig(config); err != nil {
		return nil, err
	}

	client, err := newGeminiClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiTTS(client.Models, config, logger), nil
}

func newGeminiTTS(models geminiModelsClient, config GeminiTTSConfig, logger *zap.Logger) *GeminiTTS {
	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default speech model", zap.String("model", model))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultGeminiTimeout
	}

	return &GeminiTTS{
		models:  models,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Synthesize converts text to a WAV data URI
func (g *GeminiTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (repositories.Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return repositories.Speech{}, fmt.Errorf("text cannot be empty")
	}

	voiceName := voiceForLanguage(req.LanguageCode)
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voiceName},
			},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Debug("Synthesizing speech",
		zap.String("languageCode", req.LanguageCode),
		zap.String("voice", voiceName),
		zap.Int("textLength", len(req.Text)))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Text), config)
	if err != nil {
		g.logger.Warn("Speech synthesis failed", zap.Error(err))
		return repositories.Speech{}, geminiServiceError(err)
	}

	blob := extractAudio(resp)
	if blob == nil || len(blob.Data) == 0 {
		return repositories.Speech{}, &repositories.ServiceError{Provider: providerGemini, Message: "no media returned"}
	}

	wav, err := EncodeWAV(blob.Data, formatFromMIME(blob.MIMEType))
	if err != nil {
		return repositories.Speech{}, fmt.Errorf("failed to encode wav: %w", err)
	}

	g.logger.Info("Speech synthesized",
		zap.String("voice", voiceName),
		zap.Int("pcmBytes", len(blob.Data)))

	return repositories.Speech{
		Media:    DataURI(MIMETypeWAV, wav),
		MIMEType: MIMETypeWAV,
	}, nil
}

func extractAudio(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}

func geminiServiceError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return &repositories.ServiceError{Provider: providerGemini, Message: err.Error(), Err: err}
		}
		apiErr = *apiErrPtr
	}

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
