package entities

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Role defines who produced a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// WelcomeMessageID is the fixed ID of the synthetic greeting
	WelcomeMessageID = "initial-welcome"

	// WelcomeText is spoken before any user interaction
	WelcomeText = "Welcome to AgileAssist! How can I help you today?"

	// FailureText replaces the answer when a turn fails
	FailureText = "I'm sorry, but I encountered an error and can't respond right now."
)

// ChatMessage represents one turn in the transcript
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Audio     string    `json:"audio,omitempty"`    // data URI of server-synthesized audio
	Language  string    `json:"language,omitempty"` // BCP-47 tag
	IsWelcome bool      `json:"isWelcome,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasAudio reports whether server-side synthesis produced audio for this message
func (m ChatMessage) HasAudio() bool {
	return m.Audio != ""
}

// NewUserMessage creates a message for a finalized user utterance
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{
		ID:        newMessageID(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an assistant reply. audio may be empty when
// the reply falls back to local speech synthesis.
func NewAssistantMessage(text, audio, language string) ChatMessage {
	return ChatMessage{
		ID:        newMessageID(),
		Role:      RoleAssistant,
		Text:      text,
		Audio:     audio,
		Language:  language,
		CreatedAt: time.Now(),
	}
}

// NewWelcomeMessage creates the synthetic greeting shown before the first turn
func NewWelcomeMessage(language string) ChatMessage {
	return ChatMessage{
		ID:        WelcomeMessageID,
		Role:      RoleAssistant,
		Text:      WelcomeText,
		Language:  language,
		IsWelcome: true,
		CreatedAt: time.Now(),
	}
}

// newMessageID returns a time-ordered unique ID
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// entropy failure; fall back to a timestamp which is still ordered
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return id.String()
}
