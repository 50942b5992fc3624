package capture

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyActive is returned by Start while a session is running
	ErrAlreadyActive = errors.New("speech capture already active")
	// ErrUnavailable means the recognition capability does not exist on this client
	ErrUnavailable = errors.New("speech recognition unavailable")
)

// ErrorKind names a runtime recognition failure, as reported by the engine
type ErrorKind string

const (
	ErrorNoSpeech     ErrorKind = "no-speech"
	ErrorAborted      ErrorKind = "aborted"
	ErrorAudioCapture ErrorKind = "audio-capture"
	ErrorNetwork      ErrorKind = "network"
	ErrorNotAllowed   ErrorKind = "not-allowed"
	ErrorUnknown      ErrorKind = "unknown"
)

// EventKind tags an Event
type EventKind int

const (
	EventInterim EventKind = iota + 1
	EventFinal
	EventError
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is the tagged variant delivered to subscribers:
// Interim(text) | Final(text) | Error(kind) | Ended
type Event struct {
	Kind  EventKind
	Text  string
	Error ErrorKind
}

func Interim(text string) Event    { return Event{Kind: EventInterim, Text: text} }
func Final(text string) Event      { return Event{Kind: EventFinal, Text: text} }
func Failure(kind ErrorKind) Event { return Event{Kind: EventError, Error: kind} }
func Ended() Event                 { return Event{Kind: EventEnded} }

func (e Event) String() string {
	switch e.Kind {
	case EventInterim, EventFinal:
		return e.Kind.String() + "(" + e.Text + ")"
	case EventError:
		return e.Kind.String() + "(" + string(e.Error) + ")"
	default:
		return e.Kind.String()
	}
}

// Segment is one raw recognition result produced by an Engine.
// A segment with a non-empty Error reports a runtime failure.
type Segment struct {
	Text  string
	Final bool
	Error ErrorKind
}

// Engine is a continuous, interim-results-enabled recognizer.
// Start returns a channel of segments which the engine closes when its
// session ends, either on its own or after Stop.
type Engine interface {
	Start(ctx context.Context) (<-chan Segment, error)
	Stop() error
}
