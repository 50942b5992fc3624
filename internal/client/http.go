package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/voice"
)

// ServiceError is what both transports return for backend failures
type ServiceError = repositories.ServiceError

// IsRateLimited reports whether err is an exhausted quota
func IsRateLimited(err error) bool {
	return repositories.IsRateLimited(err)
}

const (
	actionAnswerQuestion = "answerQuestion"
	actionMultilingual   = "multilingualAssistance"
	actionTextToSpeech   = "textToSpeech"

	providerHTTP     = "http"
	defaultTimeout   = 60 * time.Second
	maxErrorBodySize = 64 << 10
)

var (
	_ voice.AnswerClient  = (*HTTP)(nil)
	_ voice.SpeechClient  = (*HTTP)(nil)
	_ voice.HealthChecker = (*HTTP)(nil)
)

type genAIRequest struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HTTP talks to a remote backend over the /gen-ai protocol
type HTTP struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTP creates a client for baseURL, e.g. http://localhost:8080
func NewHTTP(baseURL string, httpClient *http.Client, logger *zap.Logger) *HTTP {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTP{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Ask runs the multilingualAssistance action
func (h *HTTP) Ask(ctx context.Context, question, languageCode string) (repositories.Answer, error) {
	var out struct {
		Answer       string `json:"answer"`
		LanguageCode string `json:"languageCode"`
	}
	payload := map[string]string{"question": question, "languageCode": languageCode}
	if err := h.genAI(ctx, actionMultilingual, payload, &out); err != nil {
		return repositories.Answer{}, err
	}
	return repositories.Answer{Text: out.Answer, LanguageCode: out.LanguageCode}, nil
}

// AnswerQuestion runs the answerQuestion action
func (h *HTTP) AnswerQuestion(ctx context.Context, question, languageCode string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	payload := map[string]string{"question": question, "languageCode": languageCode}
	if err := h.genAI(ctx, actionAnswerQuestion, payload, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Synthesize runs the textToSpeech action and returns a data URI
func (h *HTTP) Synthesize(ctx context.Context, text, languageCode string) (string, error) {
	var out struct {
		Media string `json:"media"`
	}
	payload := map[string]string{"text": text, "languageCode": languageCode}
	if err := h.genAI(ctx, actionTextToSpeech, payload, &out); err != nil {
		return "", err
	}
	return out.Media, nil
}

// Health calls GET /health
func (h *HTTP) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return &ServiceError{Provider: providerHTTP, Message: err.Error(), Err: err}
	}

	var body healthBody
	if err := h.do(req, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("backend reported status %q", body.Status)
		}
		return &ServiceError{Provider: providerHTTP, Message: msg, StatusCode: http.StatusOK, Err: repositories.ErrNotConfigured}
	}
	return nil
}

func (h *HTTP) genAI(ctx context.Context, action string, payload, out any) error {
	body, err := json.Marshal(genAIRequest{Action: action, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/gen-ai", bytes.NewReader(body))
	if err != nil {
		return &ServiceError{Provider: providerHTTP, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	err = h.do(req, out)
	h.logger.Debug("gen-ai call finished",
		zap.String("action", action),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return err
}

func (h *HTTP) do(req *http.Request, out any) error {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Provider: providerHTTP, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &ServiceError{
			Provider:   providerHTTP,
			Message:    errorMessage(resp.StatusCode, raw),
			StatusCode: resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{
			Provider:   providerHTTP,
			Message:    "failed to decode response: " + err.Error(),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return nil
}

func errorMessage(status int, raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}
