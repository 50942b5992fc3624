package llm

import (
	"fmt"
	"os"
	"strconv"

	"google.golang.org/genai"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 1024
	defaultTimeoutSeconds = 30
	defaultMaxAttempts    = 3
)

// GeminiConfig holds configuration for the Gemini answer provider
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: model name (default: "gemini-2.0-flash")
// - Temperature: sampling temperature between 0 and 1 (default: 0.7)
// - MaxOutputTokens: reply token cap (default: 1024)
// - TimeoutSeconds: per-call timeout (default: 30)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiConfigFromEnv reads GEMINI_* environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}

	if temperatureStr := os.Getenv("GEMINI_TEMPERATURE"); temperatureStr != "" {
		if temperature, err := strconv.ParseFloat(temperatureStr, 32); err == nil && temperature >= 0 && temperature <= 1 {
			config.Temperature = float32(temperature)
		}
	}

	if timeoutStr := os.Getenv("GEMINI_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}

// safetySettings are the thresholds the assistant has always run with
var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
}

// answerSchema constrains the model to {"answer": ..., "languageCode": ...}
var answerSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"answer": {
			Type:        genai.TypeString,
			Description: "The answer to the question.",
		},
		"languageCode": {
			Type:        genai.TypeString,
			Description: "BCP-47 code of the language the answer is written in, e.g. en-US, hi-IN, ta-IN.",
		},
	},
	Required: []string{"answer", "languageCode"},
}
