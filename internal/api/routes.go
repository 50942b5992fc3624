package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/auth"
	"github.com/agileassist/server/internal/websocket"
	"github.com/agileassist/server/usecase"
)

// Actions accepted by POST /gen-ai
const (
	ActionAnswerQuestion         = "answerQuestion"
	ActionMultilingualAssistance = "multilingualAssistance"
	ActionTextToSpeech           = "textToSpeech"
)

// Dependencies are the services behind the HTTP surface
type Dependencies struct {
	Assistant *usecase.AssistantService
	Hub       *websocket.Hub
	Signer    *auth.Signer

	// MissingKey names the absent provider credential, empty when configured
	MissingKey      string
	DefaultLanguage string
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		return health(c, deps)
	})

	e.POST("/gen-ai", func(c echo.Context) error {
		return genAI(c, deps, logger)
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/sessions", func(c echo.Context) error {
		return createSession(c, deps, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(c, deps, logger)
	})
}

func health(c echo.Context, deps Dependencies) error {
	if deps.MissingKey != "" {
		return c.JSON(http.StatusInternalServerError, HealthResponse{
			Status:  "error",
			Message: deps.MissingKey + " is not configured.",
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func genAI(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	if deps.MissingKey != "" || deps.Assistant == nil {
		key := deps.MissingKey
		if key == "" {
			key = "answer provider"
		}
		logger.Error("Rejecting gen-ai request: backend not configured", zap.String("missing", key))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Backend not configured: " + key + " is missing.",
		})
	}

	var req GenAIRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind gen-ai request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
	}

	ctx := c.Request().Context()
	result, err := dispatch(ctx, deps.Assistant, req)
	if err != nil {
		return genAIError(c, req.Action, err, logger)
	}
	return c.JSON(http.StatusOK, result)
}

var errInvalidAction = errors.New("invalid action")

func dispatch(ctx context.Context, svc *usecase.AssistantService, req GenAIRequest) (interface{}, error) {
	switch req.Action {
	case ActionAnswerQuestion:
		var in usecase.AnswerQuestionInput
		if err := decodePayload(req.Payload, &in); err != nil {
			return nil, err
		}
		return svc.AnswerQuestion(ctx, in)

	case ActionMultilingualAssistance:
		var in usecase.MultilingualInput
		if err := decodePayload(req.Payload, &in); err != nil {
			return nil, err
		}
		return svc.MultilingualAssistance(ctx, in)

	case ActionTextToSpeech:
		var in usecase.TextToSpeechInput
		if err := decodePayload(req.Payload, &in); err != nil {
			return nil, err
		}
		return svc.TextToSpeech(ctx, in)

	default:
		return nil, errInvalidAction
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(usecase.ErrInvalidInput, err)
	}
	return nil
}

// genAIError maps a flow failure to the /gen-ai error contract: quota
// exhaustion keeps its 429, everything else upstream is a 500
func genAIError(c echo.Context, action string, err error, logger *zap.Logger) error {
	var serviceErr *repositories.ServiceError
	switch {
	case errors.Is(err, errInvalidAction):
		logger.Warn("Unknown gen-ai action", zap.String("action", action))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid action"})

	case errors.Is(err, usecase.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.As(err, &serviceErr):
		status := http.StatusInternalServerError
		if serviceErr.StatusCode == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		logger.Error("gen-ai action failed",
			zap.String("action", action),
			zap.String("provider", serviceErr.Provider),
			zap.Int("upstreamStatus", serviceErr.StatusCode),
			zap.Error(err))
		return c.JSON(status, ErrorResponse{Error: serviceErr.Message})

	default:
		logger.Error("gen-ai action failed", zap.String("action", action), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func createSession(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind session request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = deps.DefaultLanguage
	} else {
		tag, err := language.Parse(lang)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_language",
				Message: "language must be a BCP-47 tag",
			})
		}
		lang = tag.String()
	}

	issued, err := deps.Signer.IssueSessionToken(lang)
	if err != nil {
		logger.Error("Failed to issue session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Voice session token issued",
		zap.String("sessionID", issued.SessionID),
		zap.String("lang", lang))

	return c.JSON(http.StatusOK, SessionResponse{
		Token:     issued.Token,
		SessionID: issued.SessionID,
		ExpiresAt: issued.ExpiresAt,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(c echo.Context, deps Dependencies, logger *zap.Logger) error {
	token := c.QueryParam("token")
	if authHeader := c.Request().Header.Get("Authorization"); token == "" && strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "A session token is required",
		})
	}

	claims, err := deps.Signer.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired session token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("sessionID", claims.SessionID),
		zap.String("lang", claims.Language))

	return websocket.HandleWebSocket(deps.Hub, c, claims.SessionID, claims.Language, logger)
}
