package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agileassist/server/adapters/tts"
	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/internal/client"
	"github.com/agileassist/server/internal/logging"
	"github.com/agileassist/server/internal/speaker"
	"github.com/agileassist/server/internal/voice"
)

var (
	backendURL   string
	chatLanguage string
	audioDir     string
	chatLogLevel string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask a running backend questions from the terminal",
	Long: `chat reads one question per line from stdin and prints the answers.
Synthesized answers are saved to --audio-dir when set; otherwise the
answer is "spoken" to the terminal.

Commands: /reset starts over, /lang <tag> switches language, /quit exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&backendURL, "url", "http://localhost:8080", "Backend base URL")
	chatCmd.Flags().StringVarP(&chatLanguage, "lang", "l", voice.DefaultLanguage, "Session language (BCP-47)")
	chatCmd.Flags().StringVar(&audioDir, "audio-dir", "", "Directory for synthesized answer audio")
	chatCmd.Flags().StringVar(&chatLogLevel, "log-level", "warn", "Log level")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(logging.Options{Level: chatLogLevel, Format: logging.FormatConsole})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if audioDir != "" {
		if err := os.MkdirAll(audioDir, 0o750); err != nil {
			return fmt.Errorf("creating audio dir: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	backend := client.NewHTTP(backendURL, nil, logger)
	view := &terminalView{out: out, audioDir: audioDir, logger: logger}

	controller := voice.NewController(voice.Dependencies{
		Answers: backend,
		Speech:  backend,
		Speaker: speaker.New(speaker.NewConsoleEngine(out, nil), logger),
		View:    view,
	}, voice.Config{Language: chatLanguage}, logger)
	defer controller.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(out, entities.WelcomeText)
	if err := controller.CheckBackend(ctx, backend); err != nil {
		return fmt.Errorf("backend at %s is not ready: %w", backendURL, err)
	}
	if err := controller.Welcome(ctx); err != nil {
		logger.Debug("Welcome audio unavailable", zap.Error(err))
	}

	return chatLoop(ctx, controller, cmd.InOrStdin(), out)
}

func chatLoop(ctx context.Context, controller *voice.Controller, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/reset":
			controller.Reset()
			fmt.Fprintln(out, entities.WelcomeText)
			continue
		case strings.HasPrefix(line, "/lang "):
			lang := strings.TrimSpace(strings.TrimPrefix(line, "/lang "))
			controller.SetLanguage(lang)
			fmt.Fprintf(out, "language set to %s\n", lang)
			continue
		}

		if err := controller.Submit(ctx, line); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
}

// terminalView prints assistant replies and notices
type terminalView struct {
	mu       sync.Mutex
	out      io.Writer
	audioDir string
	logger   *zap.Logger
}

func (v *terminalView) OnState(state voice.State) {}

func (v *terminalView) OnMessage(msg entities.ChatMessage, autoplay bool) {
	if msg.Role != entities.RoleAssistant {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "[%s] %s\n", msg.Language, msg.Text)
	if path := v.saveAudio(msg.ID, msg.Audio); path != "" {
		fmt.Fprintf(v.out, "  audio: %s\n", path)
	}
}

func (v *terminalView) OnTranscript(messages []entities.ChatMessage) {}

func (v *terminalView) OnWelcomeAudio(media string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if path := v.saveAudio(entities.WelcomeMessageID, media); path != "" {
		fmt.Fprintf(v.out, "  audio: %s\n", path)
	}
}

func (v *terminalView) OnNotice(n voice.Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "! %s: %s\n", n.Title, n.Description)
}

// saveAudio writes a data URI to the audio dir and returns the file path
func (v *terminalView) saveAudio(id, media string) string {
	if v.audioDir == "" || media == "" {
		return ""
	}

	mimeType, data, err := tts.DecodeDataURI(media)
	if err != nil {
		v.logger.Warn("Discarding undecodable audio", zap.String("messageID", id), zap.Error(err))
		return ""
	}
	ext := ".bin"
	if mimeType == tts.MIMETypeWAV {
		ext = ".wav"
	}

	path := filepath.Join(v.audioDir, id+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		v.logger.Warn("Failed to save audio", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}
