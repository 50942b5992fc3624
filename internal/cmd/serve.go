package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agileassist/server/adapters/llm"
	"github.com/agileassist/server/adapters/stt"
	"github.com/agileassist/server/adapters/tts"
	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/api"
	"github.com/agileassist/server/internal/auth"
	"github.com/agileassist/server/internal/client"
	"github.com/agileassist/server/internal/config"
	"github.com/agileassist/server/internal/logging"
	"github.com/agileassist/server/internal/websocket"
	"github.com/agileassist/server/usecase"
)

var envFiles []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend: /gen-ai, /health and browser voice sessions",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files to load before reading the environment")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync()

	answers, err := newAnswerService(cfg, logger)
	if err != nil {
		logger.Warn("Answer provider unavailable, backend reports not configured",
			zap.String("provider", cfg.AnswerProvider),
			zap.Error(err))
	}
	speech, err := newSpeechService(cfg, logger)
	if err != nil {
		logger.Warn("Speech provider unavailable, clients fall back to local speech",
			zap.String("provider", cfg.SpeechProvider),
			zap.Error(err))
	}

	missingKey := cfg.MissingKey()
	assistant := usecase.NewAssistantService(answers, speech, logger)
	local := client.NewLocal(assistant, missingKey)

	var recognizer repositories.SpeechToText
	if cfg.ServerRecognition {
		recognizer = newRecognizer(cfg, logger)
	}

	hub := websocket.NewHub(websocket.Dependencies{
		Answers:      local,
		Speech:       local,
		Health:       local,
		SpeechToText: recognizer,
	}, websocket.Settings{
		DefaultLanguage: cfg.DefaultLanguage,
		AutoPlay:        cfg.AutoPlay,
		SilenceTimeout:  cfg.SilenceTimeout,
		SessionTTL:      auth.DefaultTokenTTL,
		AllowedOrigins:  cfg.CORSOrigins,
	}, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	cleanup := websocket.NewSessionCleanupService(hub, cfg.SessionIdleTimeout, 0, logger)
	cleanup.Start()

	signer, err := newSigner(cfg, logger)
	if err != nil {
		return err
	}

	e := api.NewEcho(cfg.CORSOrigins, logger)
	api.InitRoutes(e, api.Dependencies{
		Assistant:       assistant,
		Hub:             hub,
		Signer:          signer,
		MissingKey:      missingKey,
		DefaultLanguage: cfg.DefaultLanguage,
	}, logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("answerProvider", cfg.AnswerProvider),
		zap.String("speechProvider", cfg.SpeechProvider),
		zap.Bool("serverRecognition", cfg.ServerRecognition),
		zap.String("recognizer", cfg.RecognizerProvider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		logger.Error("Server failed", zap.Error(err))
		cleanup.Stop()
		return err
	}

	logger.Info("Server is shutting down...")

	cleanup.Stop()
	stopHub()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// newAnswerService returns a nil service, not a typed nil, on failure
func newAnswerService(cfg config.Config, logger *zap.Logger) (repositories.AnswerService, error) {
	switch cfg.AnswerProvider {
	case config.ProviderMock:
		return llm.NewMockLLM(cfg.DefaultLanguage), nil
	case config.ProviderOpenAI:
		oc := llm.NewOpenAIConfigFromEnv()
		oc.APIKey = cfg.OpenAIAPIKey
		svc, err := llm.NewOpenAILLM(oc, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		gc := llm.NewGeminiConfigFromEnv()
		gc.APIKey = cfg.GeminiAPIKey
		svc, err := llm.NewGeminiLLM(gc, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

func newSpeechService(cfg config.Config, logger *zap.Logger) (repositories.SpeechService, error) {
	switch cfg.SpeechProvider {
	case config.ProviderMock:
		return tts.NewMockTTS(), nil
	case config.ProviderElevenLabs:
		ec := tts.NewElevenLabsConfigFromEnv()
		ec.APIKey = cfg.ElevenLabsAPIKey
		svc, err := tts.NewElevenLabsTTS(ec, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		gc := tts.NewGeminiTTSConfigFromEnv()
		gc.APIKey = cfg.GeminiAPIKey
		svc, err := tts.NewGeminiTTS(gc, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

func newRecognizer(cfg config.Config, logger *zap.Logger) repositories.SpeechToText {
	if cfg.RecognizerProvider == config.ProviderMock {
		return stt.NewMockSpeechToText(logger, "")
	}
	return stt.NewGoogleSpeechToText(logger)
}

// newSigner uses JWT_SECRET, or a per-process secret that invalidates
// tokens on restart
func newSigner(cfg config.Config, logger *zap.Logger) (*auth.Signer, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("JWT_SECRET is not set, using a random secret for this process")
	}
	return auth.NewSigner(secret, auth.DefaultTokenTTL)
}
