package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agileassist/server/domain/repositories"
)

const (
	providerElevenLabs  = "elevenlabs"
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	defaultChunkSize    = 1024                     // Read size while collecting the stream
	defaultOutputFormat = "pcm_24000"              // Raw PCM, wrapped as WAV on our side
	defaultModelID      = "eleven_multilingual_v2" // Default model ID
	defaultStability    = 0.5                      // Default voice stability
	defaultClarity      = 0.75                     // Default voice clarity/similarity_boost
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
// - VoiceID: The voice ID to use (default: "21m00Tcm4TlvDq8ikWAM" - Rachel voice)
// - ModelID: The model ID to use (default: "eleven_multilingual_v2")
// - OutputFormat: pcm_<rate> or mp3_<rate>_<bitrate> (default: "pcm_24000")
// - ChunkSize: The read size while collecting the stream (default: 1024)
// - Stability: Voice stability value between 0 and 1 (default: 0.5)
// - Clarity: Voice clarity/similarity boost value between 0 and 1 (default: 0.75)
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// ElevenLabsTTS implements SpeechService using the Eleven Labs streaming API
type ElevenLabsTTS struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	httpClient   *http.Client
	logger       *zap.Logger
}

var _ repositories.SpeechService = (*ElevenLabsTTS)(nil)

// ElevenLabsVoiceSettings represents voice settings for Eleven Labs API
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text                   string                  `json:"text"`
	ModelID                string                  `json:"model_id"`
	LanguageCode           string                  `json:"language_code,omitempty"`
	VoiceSettings          ElevenLabsVoiceSettings `json:"voice_settings"`
	ApplyTextNormalization string                  `json:"apply_text_normalization,omitempty"`
}

type elevenLabsErrorBody struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}

	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}

	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}

	if config.OutputFormat != "" && !strings.HasPrefix(config.OutputFormat, "pcm_") && !strings.HasPrefix(config.OutputFormat, "mp3_") {
		return fmt.Errorf("output format must be pcm_* or mp3_*, got %s", config.OutputFormat)
	}

	return nil
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}

	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
		logger.Info("Using default model ID", zap.String("modelID", modelID))
	}

	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
		logger.Info("Using default output format", zap.String("outputFormat", outputFormat))
	}

	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
		logger.Info("Using default chunk size", zap.Int("chunkSize", chunkSize))
	}

	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
		logger.Info("Using default stability", zap.Float64("stability", stability))
	}

	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
		logger.Info("Using default clarity", zap.Float64("clarity", clarity))
	}

	return &ElevenLabsTTS{
		apiKey:       config.APIKey,
		apiBaseURL:   strings.TrimSuffix(apiBaseURL, "/"),
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		chunkSize:    chunkSize,
		stability:    stability,
		clarity:      clarity,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}, nil
}

// Synthesize streams speech from Eleven Labs and returns it as a data URI
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (repositories.Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return repositories.Speech{}, fmt.Errorf("text cannot be empty")
	}

	e.logger.Info("Converting text to speech",
		zap.Int("textLength", len(req.Text)),
		zap.String("languageCode", req.LanguageCode),
		zap.String("voiceID", e.voiceID),
		zap.String("modelID", e.modelID))

	request := ElevenLabsRequest{
		Text:                   req.Text,
		ModelID:                e.modelID,
		LanguageCode:           languageFamily(req.LanguageCode),
		ApplyTextNormalization: "auto",
		VoiceSettings: ElevenLabsVoiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return repositories.Speech{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, e.voiceID, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return repositories.Speech{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	acceptHeader := "audio/mpeg"
	if e.isPCM() {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	e.logger.Debug("Sending request to Eleven Labs API", zap.String("url", url))

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return repositories.Speech{}, &repositories.ServiceError{Provider: providerElevenLabs, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return repositories.Speech{}, &repositories.ServiceError{
			Provider:   providerElevenLabs,
			Message:    elevenLabsErrorMessage(resp.StatusCode, errorBody),
			StatusCode: resp.StatusCode,
		}
	}

	audio, err := e.collect(ctx, resp.Body)
	if err != nil {
		return repositories.Speech{}, err
	}
	if len(audio) == 0 {
		return repositories.Speech{}, &repositories.ServiceError{Provider: providerElevenLabs, Message: "no media returned"}
	}

	if !e.isPCM() {
		return repositories.Speech{Media: DataURI("audio/mpeg", audio), MIMEType: "audio/mpeg"}, nil
	}

	wav, err := EncodeWAV(audio, e.pcmFormat())
	if err != nil {
		return repositories.Speech{}, fmt.Errorf("failed to encode wav: %w", err)
	}
	return repositories.Speech{Media: DataURI(MIMETypeWAV, wav), MIMEType: MIMETypeWAV}, nil
}

// collect reads the streamed body chunk by chunk
func (e *ElevenLabsTTS) collect(ctx context.Context, body io.Reader) ([]byte, error) {
	var audio bytes.Buffer
	buffer := make([]byte, e.chunkSize)
	chunkCount := 0

	for {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Context cancelled while streaming audio data")
			return nil, err
		}

		n, err := body.Read(buffer)
		if n > 0 {
			chunkCount++
			audio.Write(buffer[:n])
		}

		if err == io.EOF {
			e.logger.Info("Finished streaming audio data",
				zap.Int("totalChunks", chunkCount),
				zap.Int("totalBytes", audio.Len()))
			return audio.Bytes(), nil
		}
		if err != nil {
			e.logger.Error("Error reading response body", zap.Error(err))
			return nil, &repositories.ServiceError{Provider: providerElevenLabs, Message: err.Error(), Err: err}
		}
	}
}

func (e *ElevenLabsTTS) isPCM() bool {
	return strings.HasPrefix(e.outputFormat, "pcm_")
}

func (e *ElevenLabsTTS) pcmFormat() PCMFormat {
	format := DefaultPCMFormat
	if rate, err := strconv.Atoi(strings.TrimPrefix(e.outputFormat, "pcm_")); err == nil && rate > 0 {
		format.SampleRate = rate
	}
	return format
}

// SetVoiceSettings allows customization of voice parameters
func (e *ElevenLabsTTS) SetVoiceSettings(stability, clarity float64) {
	e.stability = stability
	e.clarity = clarity
	e.logger.Info("Updated voice settings",
		zap.Float64("stability", stability),
		zap.Float64("clarity", clarity))
}

// SetVoiceID allows changing the voice used for TTS
func (e *ElevenLabsTTS) SetVoiceID(voiceID string) {
	e.voiceID = voiceID
	e.logger.Info("Updated voice ID", zap.String("voiceID", voiceID))
}

// NewElevenLabsConfigFromEnv creates a new ElevenLabsConfig from environment variables
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}

	if chunkSizeStr := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}

	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}

	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}

	return config
}

func elevenLabsErrorMessage(status int, body []byte) string {
	var parsed elevenLabsErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail.Message != "" {
		return parsed.Detail.Message
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// languageFamily turns hi-IN into hi, the ISO 639-1 code the API accepts
func languageFamily(tag string) string {
	family, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(family)
}
