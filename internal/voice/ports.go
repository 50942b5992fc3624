package voice

import (
	"context"

	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/capture"
)

// AnswerClient asks the backend a question
type AnswerClient interface {
	Ask(ctx context.Context, question, languageCode string) (repositories.Answer, error)
}

// SpeechClient turns text into a playable media reference (a data URI)
type SpeechClient interface {
	Synthesize(ctx context.Context, text, languageCode string) (string, error)
}

// HealthChecker reports whether the backend is configured
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Speaker is the local speech output
type Speaker interface {
	Speak(text, languageCode string) error
	Cancel()
}

// Capture is a speech capture session with a tagged event stream
type Capture interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan capture.Event
}

// View renders controller output
type View interface {
	OnState(state State)
	OnMessage(msg entities.ChatMessage, autoplay bool)
	OnTranscript(messages []entities.ChatMessage)
	OnWelcomeAudio(media string)
	OnNotice(notice Notice)
}

// NopView discards everything
type NopView struct{}

func (NopView) OnState(State) {}
func (NopView) OnMessage(entities.ChatMessage, bool) {}
func (NopView) OnTranscript([]entities.ChatMessage) {}
func (NopView) OnWelcomeAudio(string) {}
func (NopView) OnNotice(Notice) {}
