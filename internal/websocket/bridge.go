package websocket

import (
	"context"
	"sync"

	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/internal/capture"
	"github.com/agileassist/server/internal/speaker"
	"github.com/agileassist/server/internal/voice"
)

const segmentBuffer = 32

// sender queues a JSON message for the browser
type sender func(v interface{})

// RemoteRecognizer is a capture engine driven by the browser's speech
// recognition. Start and Stop become recognition_start and recognition_stop
// commands; segments arrive as recognition_* messages.
type RemoteRecognizer struct {
	send     sender
	language func() string

	mu       sync.Mutex
	segments chan capture.Segment
}

var _ capture.Engine = (*RemoteRecognizer)(nil)

// NewRemoteRecognizer creates a recognizer; language is read on every Start
func NewRemoteRecognizer(send sender, language func() string) *RemoteRecognizer {
	return &RemoteRecognizer{send: send, language: language}
}

// Start implements capture.Engine
func (r *RemoteRecognizer) Start(ctx context.Context) (<-chan capture.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segments != nil {
		return nil, capture.ErrAlreadyActive
	}
	r.segments = make(chan capture.Segment, segmentBuffer)
	r.send(&RecognitionStartMessage{BaseMessage: newBase(MessageTypeRecognitionStart), Lang: r.language()})
	return r.segments, nil
}

// Stop implements capture.Engine. The session ends when the browser
// confirms with recognition_end.
func (r *RemoteRecognizer) Stop() error {
	r.mu.Lock()
	active := r.segments != nil
	r.mu.Unlock()

	if active {
		r.send(CreateControlMessage(MessageTypeRecognitionStop))
	}
	return nil
}

// Push delivers a browser segment; it is dropped when no session is active
func (r *RemoteRecognizer) Push(seg capture.Segment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segments == nil {
		return false
	}
	r.segments <- seg
	return true
}

// End closes the current session
func (r *RemoteRecognizer) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.segments != nil {
		close(r.segments)
		r.segments = nil
	}
}

// RemoteSpeechEngine is a speaker engine backed by the browser's speech
// synthesis
type RemoteSpeechEngine struct {
	send sender

	mu     sync.RWMutex
	voices []speaker.Voice
}

var _ speaker.Engine = (*RemoteSpeechEngine)(nil)

// NewRemoteSpeechEngine creates an engine with no known voices
func NewRemoteSpeechEngine(send sender) *RemoteSpeechEngine {
	return &RemoteSpeechEngine{send: send}
}

// Voices implements speaker.Engine
func (e *RemoteSpeechEngine) Voices() []speaker.Voice {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]speaker.Voice(nil), e.voices...)
}

// SetVoices replaces the voice list reported by the browser
func (e *RemoteSpeechEngine) SetVoices(infos []VoiceInfo) {
	voices := make([]speaker.Voice, 0, len(infos))
	for _, v := range infos {
		voices = append(voices, speaker.Voice{Name: v.Name, Lang: v.Lang, Default: v.Default})
	}

	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
}

// Speak implements speaker.Engine
func (e *RemoteSpeechEngine) Speak(u speaker.Utterance) error {
	var name string
	if u.Voice != nil {
		name = u.Voice.Name
	}
	e.send(CreateSpeakMessage(u.Text, u.Lang, name))
	return nil
}

// Cancel implements speaker.Engine
func (e *RemoteSpeechEngine) Cancel() {
	e.send(CreateControlMessage(MessageTypeSpeakCancel))
}

// socketView renders controller output as server messages
type socketView struct {
	send sender
}

var _ voice.View = socketView{}

func (v socketView) OnState(state voice.State) {
	v.send(CreateStateMessage(state))
}

func (v socketView) OnMessage(msg entities.ChatMessage, autoplay bool) {
	v.send(CreateChatMessage(msg, autoplay))
}

func (v socketView) OnTranscript(messages []entities.ChatMessage) {
	v.send(CreateTranscriptMessage(messages))
}

func (v socketView) OnWelcomeAudio(media string) {
	v.send(&WelcomeAudioMessage{BaseMessage: newBase(MessageTypeWelcomeAudio), Media: media})
}

func (v socketView) OnNotice(n voice.Notice) {
	v.send(CreateNoticeMessage(n))
}
