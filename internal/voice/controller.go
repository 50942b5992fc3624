package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/internal/capture"
)

// DefaultLanguage is used when neither the session nor the answer names one
const DefaultLanguage = "en-US"

// Config tunes a Controller
type Config struct {
	// Language is the session language, sent with every question
	Language string
	// AutoPlay asks clients to play synthesized answers as soon as they arrive
	AutoPlay bool
}

// Dependencies are the collaborators of a Controller. Capture, Speech and
// View may be nil.
type Dependencies struct {
	Answers AnswerClient
	Speech  SpeechClient
	Speaker Speaker
	Capture Capture
	View    View
}

// Controller owns the transcript and runs one turn at a time:
// user input, answer, speech, assistant message.
type Controller struct {
	answers  AnswerClient
	speech   SpeechClient
	speaker  Speaker
	capture  Capture
	view     View
	logger   *zap.Logger
	autoplay bool

	mu                  sync.Mutex
	transcript          *entities.Transcript
	state               State
	generation          uint64
	welcomeMedia        string
	unavailableNotified bool
	closed              bool

	turns sync.WaitGroup
}

type turn struct {
	generation uint64
	text       string
	language   string
}

// NewController creates a controller holding a transcript with only the
// welcome message
func NewController(deps Dependencies, cfg Config, logger *zap.Logger) *Controller {
	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	view := deps.View
	if view == nil {
		view = NopView{}
	}

	return &Controller{
		answers:    deps.Answers,
		speech:     deps.Speech,
		speaker:    deps.Speaker,
		capture:    deps.Capture,
		view:       view,
		logger:     logger,
		autoplay:   cfg.AutoPlay,
		transcript: entities.NewTranscriptWithWelcome(lang),
		state: State{
			IsBackendConfigured:  true,
			RecognitionAvailable: deps.Capture != nil,
			Turn:                 PhaseIdle,
			Language:             lang,
		},
	}
}

// State returns a snapshot of the controller state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the transcript
func (c *Controller) Messages() []entities.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Messages()
}

// SetLanguage changes the session language
func (c *Controller) SetLanguage(lang string) {
	if lang == "" {
		return
	}
	c.mu.Lock()
	c.state.Language = lang
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
}

// StartListening cancels local speech output and starts speech capture
func (c *Controller) StartListening(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state.IsLoading:
		c.mu.Unlock()
		return ErrTurnInProgress
	case !c.state.IsBackendConfigured:
		c.mu.Unlock()
		return ErrNotConfigured
	case c.capture == nil || !c.state.RecognitionAvailable:
		c.mu.Unlock()
		c.DisableRecognition()
		return capture.ErrUnavailable
	}
	c.mu.Unlock()

	if c.speaker != nil {
		c.speaker.Cancel()
	}

	if err := c.capture.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrUnavailable) {
			c.DisableRecognition()
			return err
		}
		c.logger.Warn("Failed to start listening", zap.Error(err))
		c.view.OnNotice(recognitionNotice(err.Error()))
		return err
	}

	c.mu.Lock()
	c.state.IsListening = true
	c.state.InterimText = ""
	if !c.state.IsLoading {
		c.state.Turn = PhaseListening
	}
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
	return nil
}

// StopListening stops capture; the buffered transcript arrives as a Final event
func (c *Controller) StopListening() error {
	if c.capture == nil {
		return nil
	}
	return c.capture.Stop()
}

// DisableRecognition marks speech capture as unsupported and tells the user once
func (c *Controller) DisableRecognition() {
	c.mu.Lock()
	c.state.RecognitionAvailable = false
	c.state.IsListening = false
	notify := !c.unavailableNotified
	c.unavailableNotified = true
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
	if notify {
		c.view.OnNotice(capabilityNotice())
	}
}

// OnInterimResult shows provisional recognition text
func (c *Controller) OnInterimResult(text string) {
	c.mu.Lock()
	c.state.InterimText = text
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
}

// OnFinalResult runs a whole turn for text and returns when the assistant
// message has been appended. Blank input is ignored.
func (c *Controller) OnFinalResult(ctx context.Context, text string) error {
	t, err := c.beginTurn(text)
	if errors.Is(err, ErrEmptyInput) {
		return nil
	}
	if err != nil {
		return err
	}
	c.runTurn(ctx, t)
	return nil
}

// Submit runs a turn for a typed or suggested prompt
func (c *Controller) Submit(ctx context.Context, text string) error {
	return c.OnFinalResult(ctx, text)
}

// SubmitAsync starts a turn and returns once the user message is appended
// and loading is set; the rest of the turn runs in the background.
func (c *Controller) SubmitAsync(ctx context.Context, text string) error {
	t, err := c.beginTurn(text)
	if err != nil {
		return err
	}
	go c.runTurn(ctx, t)
	return nil
}

// OnRecognitionError reports a runtime recognition failure
func (c *Controller) OnRecognitionError(kind capture.ErrorKind) {
	c.logger.Warn("Speech recognition error", zap.String("error", string(kind)))
	c.view.OnNotice(recognitionKindNotice(kind))
	if c.capture != nil {
		_ = c.capture.Stop()
	}
}

// OnEnded clears the listening indicators
func (c *Controller) OnEnded() {
	c.mu.Lock()
	c.state.IsListening = false
	c.state.InterimText = ""
	if c.state.Turn == PhaseListening {
		c.state.Turn = PhaseIdle
	}
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
}

// Run dispatches capture events until ctx is done or the stream closes
func (c *Controller) Run(ctx context.Context) error {
	if c.capture == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	events := c.capture.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, ev capture.Event) {
	switch ev.Kind {
	case capture.EventInterim:
		c.OnInterimResult(ev.Text)
	case capture.EventFinal:
		if err := c.SubmitAsync(ctx, ev.Text); err != nil && !errors.Is(err, ErrEmptyInput) {
			c.logger.Info("Final transcript not submitted", zap.Error(err))
		}
	case capture.EventError:
		c.OnRecognitionError(ev.Error)
	case capture.EventEnded:
		c.OnEnded()
	}
}

// SetBackendStatus records the health check result. A failure disables
// every turn-starting operation and raises a persistent notice.
func (c *Controller) SetBackendStatus(ok bool, message string) {
	c.mu.Lock()
	prev := c.state.IsBackendConfigured
	c.state.IsBackendConfigured = ok
	listening := c.state.IsListening
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
	if ok || !prev {
		return
	}

	c.logger.Warn("Backend not configured", zap.String("message", message))
	c.view.OnNotice(configurationNotice())
	if listening && c.capture != nil {
		_ = c.capture.Stop()
	}
}

// CheckBackend runs a health check and applies its result
func (c *Controller) CheckBackend(ctx context.Context, health HealthChecker) error {
	err := health.Health(ctx)
	if err != nil {
		c.SetBackendStatus(false, errorMessage(err))
		return err
	}
	c.SetBackendStatus(true, "")
	return nil
}

// Welcome synthesizes the greeting and attaches it to the welcome message.
// On failure the greeting stays text-only.
func (c *Controller) Welcome(ctx context.Context) error {
	c.mu.Lock()
	lang := c.state.Language
	c.mu.Unlock()

	result := Voice(ctx, c.speech, entities.WelcomeText, lang)
	synthesized, ok := result.(Synthesized)
	if !ok {
		reason := result.(Fallback).Reason
		c.logger.Info("Welcome audio unavailable", zap.Error(reason))
		return reason
	}

	c.mu.Lock()
	c.welcomeMedia = synthesized.Media
	attached := c.transcript.AttachWelcomeAudio(synthesized.Media)
	c.mu.Unlock()

	if attached {
		c.view.OnWelcomeAudio(synthesized.Media)
	}
	return nil
}

// Reset starts over with only the welcome message. A turn still in flight
// finishes in the background but its reply is dropped.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	c.transcript = entities.NewTranscriptWithWelcome(c.state.Language)
	if c.welcomeMedia != "" {
		c.transcript.AttachWelcomeAudio(c.welcomeMedia)
	}
	c.state.IsLoading = false
	c.state.InterimText = ""
	c.state.LastOutcome = ""
	if c.state.IsListening {
		c.state.Turn = PhaseListening
	} else {
		c.state.Turn = PhaseIdle
	}
	snapshot := c.state
	messages := c.transcript.Messages()
	c.mu.Unlock()

	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.view.OnTranscript(messages)
	c.view.OnState(snapshot)
}

// Wait blocks until every started turn has finished
func (c *Controller) Wait() {
	c.turns.Wait()
}

// Close cancels speech output, stops capture and waits for in-flight turns
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.speaker != nil {
		c.speaker.Cancel()
	}
	var err error
	if c.capture != nil {
		err = c.capture.Stop()
	}
	c.turns.Wait()
	return err
}

// beginTurn appends the user message and takes the loading flag
func (c *Controller) beginTurn(text string) (turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return turn{}, ErrEmptyInput
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return turn{}, ErrClosed
	case !c.state.IsBackendConfigured:
		c.mu.Unlock()
		return turn{}, ErrNotConfigured
	case c.state.IsLoading:
		c.mu.Unlock()
		return turn{}, ErrTurnInProgress
	}

	cleared := c.transcript.ClearWelcome()
	user := entities.NewUserMessage(text)
	if err := c.transcript.Append(user); err != nil {
		c.mu.Unlock()
		return turn{}, fmt.Errorf("failed to append user message: %w", err)
	}
	c.state.IsLoading = true
	c.state.Turn = PhaseAnswering
	c.state.InterimText = ""
	t := turn{generation: c.generation, text: text, language: c.state.Language}
	snapshot := c.state
	messages := c.transcript.Messages()
	c.turns.Add(1)
	c.mu.Unlock()

	if cleared {
		c.view.OnTranscript(messages)
	} else {
		c.view.OnMessage(user, false)
	}
	c.view.OnState(snapshot)

	c.logger.Debug("Turn started", zap.String("messageID", user.ID))
	return t, nil
}

func (c *Controller) runTurn(ctx context.Context, t turn) {
	defer c.turns.Done()
	msg, outcome := c.resolveTurn(ctx, t)
	c.finishTurn(t, msg, outcome)
}

// resolveTurn produces exactly one assistant message, whatever happens
func (c *Controller) resolveTurn(ctx context.Context, t turn) (msg entities.ChatMessage, outcome TurnPhase) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Turn panicked", zap.Any("panic", r))
			c.notify(t, answerServiceNotice(fmt.Sprint(r)))
			msg = entities.NewAssistantMessage(entities.FailureText, "", "")
			outcome = PhaseFailed
		}
	}()

	answer, err := c.answers.Ask(ctx, t.text, t.language)
	if err == nil && strings.TrimSpace(answer.Text) == "" {
		err = errors.New("the assistant returned an empty answer")
	}
	if err != nil {
		c.logger.Warn("Answer service failed", zap.Error(err))
		c.notify(t, answerServiceNotice(errorMessage(err)))
		return entities.NewAssistantMessage(entities.FailureText, "", ""), PhaseFailed
	}

	text := strings.TrimSpace(answer.Text)
	lang := answer.LanguageCode
	if lang == "" {
		lang = DefaultLanguage
	}

	c.setPhase(t, PhaseSynthesizing)
	audio := c.playback(t, Voice(ctx, c.speech, text, lang), text, lang)

	return entities.NewAssistantMessage(text, audio, lang), PhaseResolved
}

// playback returns the media to attach, or speaks locally and returns ""
func (c *Controller) playback(t turn, result VoiceResult, text, lang string) string {
	switch r := result.(type) {
	case Synthesized:
		return r.Media
	case Fallback:
		c.logger.Info("Falling back to local speech",
			zap.Error(r.Reason),
			zap.Bool("rateLimited", r.RateLimited),
			zap.String("lang", lang))

		if c.speaker != nil && c.isCurrent(t) {
			if err := c.speaker.Speak(text, lang); err != nil {
				c.logger.Warn("Local speech failed", zap.Error(err))
			}
		}
		if r.RateLimited {
			c.notify(t, speechQuotaNotice())
		}
	}
	return ""
}

func (c *Controller) finishTurn(t turn, msg entities.ChatMessage, outcome TurnPhase) {
	c.mu.Lock()
	if t.generation != c.generation {
		c.mu.Unlock()
		c.logger.Info("Dropping reply of a reset conversation", zap.String("outcome", string(outcome)))
		return
	}

	if err := c.transcript.Append(msg); err != nil {
		c.logger.Error("Failed to append assistant message", zap.Error(err))
	}
	c.state.IsLoading = false
	c.state.LastOutcome = outcome
	if c.state.IsListening {
		c.state.Turn = PhaseListening
	} else {
		c.state.Turn = PhaseIdle
	}
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnMessage(msg, c.autoplay && msg.HasAudio())
	c.view.OnState(snapshot)

	c.logger.Info("Turn finished",
		zap.String("outcome", string(outcome)),
		zap.String("language", msg.Language),
		zap.Bool("audio", msg.HasAudio()))
}

func (c *Controller) setPhase(t turn, phase TurnPhase) {
	c.mu.Lock()
	if t.generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.state.Turn = phase
	snapshot := c.state
	c.mu.Unlock()

	c.view.OnState(snapshot)
}

// notify raises a turn's notice unless the conversation was reset meanwhile
func (c *Controller) notify(t turn, n Notice) {
	if !c.isCurrent(t) {
		c.logger.Debug("Dropping notice of a reset conversation", zap.String("kind", string(n.Kind)))
		return
	}
	c.view.OnNotice(n)
}

func (c *Controller) isCurrent(t turn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.generation == c.generation && !c.closed
}
