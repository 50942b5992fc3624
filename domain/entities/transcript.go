package entities

import (
	"errors"
	"sync"
)

var (
	ErrEmptyMessage     = errors.New("message text is required")
	ErrDuplicateMessage = errors.New("message id already exists in transcript")
)

// Transcript is the ordered, append-only list of chat messages for one session.
// The only in-place mutation allowed is filling the welcome message audio once.
type Transcript struct {
	mu            sync.RWMutex
	messages      []ChatMessage
	ids           map[string]struct{}
	welcomeFilled bool
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{
		messages: make([]ChatMessage, 0),
		ids:      make(map[string]struct{}),
	}
}

// NewTranscriptWithWelcome creates a transcript holding only the welcome message
func NewTranscriptWithWelcome(language string) *Transcript {
	t := NewTranscript()
	welcome := NewWelcomeMessage(language)
	t.messages = append(t.messages, welcome)
	t.ids[welcome.ID] = struct{}{}
	return t
}

// Append adds a message to the end of the transcript
func (t *Transcript) Append(msg ChatMessage) error {
	if msg.Text == "" {
		return ErrEmptyMessage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ids[msg.ID]; exists {
		return ErrDuplicateMessage
	}
	t.messages = append(t.messages, msg)
	t.ids[msg.ID] = struct{}{}
	return nil
}

// Messages returns a copy of the transcript
func (t *Transcript) Messages() []ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, if any
func (t *Transcript) Last() (ChatMessage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return ChatMessage{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// OnlyWelcome reports whether the transcript holds nothing but the greeting
func (t *Transcript) OnlyWelcome() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages) == 1 && t.messages[0].IsWelcome
}

// ClearWelcome empties the transcript when it holds only the greeting.
// It returns true when the greeting was removed.
func (t *Transcript) ClearWelcome() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) != 1 || !t.messages[0].IsWelcome {
		return false
	}
	delete(t.ids, t.messages[0].ID)
	t.messages = t.messages[:0]
	return true
}

// AttachWelcomeAudio fills the greeting's audio field. It succeeds at most
// once and only while the greeting is still present.
func (t *Transcript) AttachWelcomeAudio(media string) bool {
	if media == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.welcomeFilled {
		return false
	}
	for i := range t.messages {
		if t.messages[i].IsWelcome {
			t.messages[i].Audio = media
			t.welcomeFilled = true
			return true
		}
	}
	return false
}
