package websocket

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/agileassist/server/adapters/stt"
	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/capture"
	"github.com/agileassist/server/internal/speaker"
	"github.com/agileassist/server/internal/voice"
)

const (
	defaultSampleRate = 16000
	defaultEncoding   = "LINEAR16"
)

// voiceSession is the conversation running behind one connection
type voiceSession struct {
	controller *voice.Controller
	adapter    *capture.Adapter
	remote     *RemoteRecognizer
	server     *stt.Recognizer
	audio      repositories.AudioConfig
	engine     *RemoteSpeechEngine
	speaker    *speaker.Speaker
	logger     *zap.Logger

	// set once audio without a recognizer was reported; read pump only
	audioRejected bool

	cancel context.CancelFunc
	done   chan struct{}
}

// newVoiceSession wires a controller to the browser. Recognition runs in the
// browser when it says it can, on the server when audio frames are enabled,
// and is unavailable otherwise.
func (h *Hub) newVoiceSession(c *Client, hello *HelloMessage, language string) *voiceSession {
	vs := &voiceSession{
		engine: NewRemoteSpeechEngine(c.sendJSON),
		logger: c.logger,
		done:   make(chan struct{}),
	}
	vs.speaker = speaker.New(vs.engine, c.logger)

	var engine capture.Engine
	switch {
	case hello.Capabilities.Recognition:
		vs.remote = NewRemoteRecognizer(c.sendJSON, func() string {
			return vs.controller.State().Language
		})
		engine = vs.remote
	case h.deps.SpeechToText != nil:
		vs.audio = repositories.AudioConfig{
			SampleRate: defaultSampleRate,
			Encoding:   defaultEncoding,
			Language:   language,
		}
		vs.server = stt.NewRecognizer(h.deps.SpeechToText, vs.audio, c.logger)
		engine = vs.server
	}

	var captureDep voice.Capture
	if engine != nil {
		vs.adapter = capture.NewAdapter(engine, c.logger, capture.WithQuietInterval(h.settings.SilenceTimeout))
		captureDep = vs.adapter
	}

	vs.controller = voice.NewController(voice.Dependencies{
		Answers: h.deps.Answers,
		Speech:  h.deps.Speech,
		Speaker: vs.speaker,
		Capture: captureDep,
		View:    socketView{send: c.sendJSON},
	}, voice.Config{
		Language: language,
		AutoPlay: h.settings.AutoPlay,
	}, c.logger)

	return vs
}

// start pushes the initial transcript, runs the event loop and checks the backend
func (vs *voiceSession) start(ctx context.Context, health voice.HealthChecker, send sender) {
	ctx, vs.cancel = context.WithCancel(ctx)

	send(CreateTranscriptMessage(vs.controller.Messages()))
	send(CreateStateMessage(vs.controller.State()))

	if vs.adapter == nil {
		vs.controller.DisableRecognition()
	}

	go func() {
		defer close(vs.done)
		if err := vs.controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			vs.logger.Warn("Voice session loop stopped", zap.Error(err))
		}
	}()

	go func() {
		if health != nil {
			if err := vs.controller.CheckBackend(ctx, health); err != nil {
				vs.logger.Warn("Backend health check failed", zap.Error(err))
				return
			}
		}
		if err := vs.controller.Welcome(ctx); err != nil {
			vs.logger.Debug("Welcome message stays text-only", zap.Error(err))
		}
	}()
}

func (vs *voiceSession) setLanguage(lang string) {
	vs.controller.SetLanguage(lang)
	if vs.server != nil {
		vs.audio.Language = lang
		vs.server.Configure(vs.audio)
	}
}

// configureAudio applies an audio_config message to server recognition
func (vs *voiceSession) configureAudio(msg *AudioConfigMessage) bool {
	if vs.server == nil {
		return false
	}
	vs.audio.SampleRate = msg.SampleRate
	if msg.Encoding != "" {
		vs.audio.Encoding = msg.Encoding
	}
	if msg.Language != "" {
		vs.audio.Language = msg.Language
	}
	vs.server.Configure(vs.audio)
	return true
}

// close stops the conversation and waits for its goroutines
func (vs *voiceSession) close() {
	if vs.remote != nil {
		vs.remote.End()
	}
	if vs.cancel != nil {
		vs.cancel()
		<-vs.done
	}

	if err := vs.controller.Close(); err != nil {
		vs.logger.Debug("Controller close", zap.Error(err))
	}
	if vs.adapter != nil {
		// nobody reads events once the loop is gone
		go func() {
			for range vs.adapter.Events() {
			}
		}()
		if err := vs.adapter.Close(); err != nil {
			vs.logger.Debug("Capture close", zap.Error(err))
		}
	}
}
