package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/internal/capture"
	"github.com/agileassist/server/internal/voice"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server
const (
	MessageTypeHello             MessageType = "hello"
	MessageTypeVoices            MessageType = "voices"
	MessageTypeMicStart          MessageType = "mic_start"
	MessageTypeMicStop           MessageType = "mic_stop"
	MessageTypeRecognitionResult MessageType = "recognition_result"
	MessageTypeRecognitionError  MessageType = "recognition_error"
	MessageTypeRecognitionEnd    MessageType = "recognition_end"
	MessageTypePrompt            MessageType = "prompt"
	MessageTypeReset             MessageType = "reset"
	MessageTypeAudioConfig       MessageType = "audio_config"
	MessageTypePing              MessageType = "ping"
)

// Server to client
const (
	MessageTypeState            MessageType = "state"
	MessageTypeMessage          MessageType = "message"
	MessageTypeTranscript       MessageType = "transcript"
	MessageTypeWelcomeAudio     MessageType = "welcome_audio"
	MessageTypeNotice           MessageType = "notice"
	MessageTypeRecognitionStart MessageType = "recognition_start"
	MessageTypeRecognitionStop  MessageType = "recognition_stop"
	MessageTypeSpeak            MessageType = "speak"
	MessageTypeSpeakCancel      MessageType = "speak_cancel"
	MessageTypePong             MessageType = "pong"
	MessageTypeError            MessageType = "error"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeTurnInProgress = "turn_in_progress"
	ErrorCodeNotConfigured  = "not_configured"
	ErrorCodeMicUnavailable = "mic_unavailable"
	ErrorCodeNoRecognizer   = "no_server_recognition"
)

const (
	minSampleRate = 8000
	maxSampleRate = 48000
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// Capabilities are the speech features the browser offers
type Capabilities struct {
	Recognition bool `json:"recognition"`
	Synthesis   bool `json:"synthesis"`
}

// HelloMessage opens a voice session
type HelloMessage struct {
	BaseMessage
	Capabilities Capabilities `json:"capabilities"`
	Language     string       `json:"language,omitempty"`
}

// VoiceInfo is one browser speech-synthesis voice
type VoiceInfo struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// VoicesMessage reports the browser's voice list
type VoicesMessage struct {
	BaseMessage
	Voices []VoiceInfo `json:"voices"`
}

// RecognitionResultMessage is one browser recognition segment
type RecognitionResultMessage struct {
	BaseMessage
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// RecognitionErrorMessage is a browser recognition runtime error
type RecognitionErrorMessage struct {
	BaseMessage
	Error string `json:"error"`
}

// PromptMessage is a typed or suggested prompt
type PromptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// AudioConfigMessage describes binary audio frames for server-side recognition
type AudioConfigMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language,omitempty"`
}

// ControlMessage carries no payload (mic_start, mic_stop, recognition_end, reset)
type ControlMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StateMessage mirrors the controller state
type StateMessage struct {
	BaseMessage
	State voice.State `json:"state"`
}

// ChatMessageMessage carries an appended transcript message
type ChatMessageMessage struct {
	BaseMessage
	Message  entities.ChatMessage `json:"message"`
	Autoplay bool                 `json:"autoplay"`
}

// TranscriptMessage replaces the whole transcript on the client
type TranscriptMessage struct {
	BaseMessage
	Messages []entities.ChatMessage `json:"messages"`
}

// WelcomeAudioMessage carries audio for the welcome message
type WelcomeAudioMessage struct {
	BaseMessage
	Media string `json:"media"`
}

// NoticeMessage is a user-visible notice
type NoticeMessage struct {
	BaseMessage
	voice.Notice
}

// RecognitionStartMessage asks the browser to start recognition
type RecognitionStartMessage struct {
	BaseMessage
	Lang string `json:"lang"`
}

// SpeakMessage asks the browser to speak text locally
type SpeakMessage struct {
	BaseMessage
	Text  string `json:"text"`
	Lang  string `json:"lang"`
	Voice string `json:"voice,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeHello:
		var msg HelloMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid hello message: %w", err)
		}
		return &msg, nil

	case MessageTypeVoices:
		var msg VoicesMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid voices message: %w", err)
		}
		for i, voice := range msg.Voices {
			if voice.Lang == "" {
				return nil, fmt.Errorf("voices[%d].lang is required", i)
			}
		}
		return &msg, nil

	case MessageTypeRecognitionResult:
		var msg RecognitionResultMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid recognition result message: %w", err)
		}
		return &msg, nil

	case MessageTypeRecognitionError:
		var msg RecognitionErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid recognition error message: %w", err)
		}
		if strings.TrimSpace(msg.Error) == "" {
			return nil, fmt.Errorf("error is required")
		}
		return &msg, nil

	case MessageTypePrompt:
		var msg PromptMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid prompt message: %w", err)
		}
		return &msg, nil

	case MessageTypeAudioConfig:
		var msg AudioConfigMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid audio config message: %w", err)
		}
		if err := v.validateAudioConfig(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeMicStart, MessageTypeMicStop, MessageTypeRecognitionEnd, MessageTypeReset:
		return &ControlMessage{BaseMessage: base}, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateAudioConfig validates audio config message fields
func (v *MessageValidator) validateAudioConfig(msg *AudioConfigMessage) error {
	if msg.SampleRate < minSampleRate || msg.SampleRate > maxSampleRate {
		return fmt.Errorf("sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}

	validEncodings := map[string]bool{
		"": true, "LINEAR16": true, "FLAC": true, "MULAW": true, "OGG_OPUS": true, "WEBM_OPUS": true,
	}
	msg.Encoding = strings.ToUpper(strings.TrimSpace(msg.Encoding))
	if !validEncodings[msg.Encoding] {
		return fmt.Errorf("encoding must be one of: LINEAR16, FLAC, MULAW, OGG_OPUS, WEBM_OPUS")
	}
	return nil
}

// recognitionErrorKind maps a browser error string to a capture error kind
func recognitionErrorKind(s string) capture.ErrorKind {
	switch kind := capture.ErrorKind(strings.TrimSpace(s)); kind {
	case capture.ErrorNoSpeech, capture.ErrorAborted, capture.ErrorAudioCapture,
		capture.ErrorNetwork, capture.ErrorNotAllowed:
		return kind
	default:
		return capture.ErrorUnknown
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong), Data: data}
}

// CreateStateMessage wraps a controller state
func CreateStateMessage(state voice.State) *StateMessage {
	return &StateMessage{BaseMessage: newBase(MessageTypeState), State: state}
}

// CreateChatMessage wraps an appended transcript message
func CreateChatMessage(msg entities.ChatMessage, autoplay bool) *ChatMessageMessage {
	return &ChatMessageMessage{BaseMessage: newBase(MessageTypeMessage), Message: msg, Autoplay: autoplay}
}

// CreateTranscriptMessage wraps the whole transcript
func CreateTranscriptMessage(messages []entities.ChatMessage) *TranscriptMessage {
	if messages == nil {
		messages = []entities.ChatMessage{}
	}
	return &TranscriptMessage{BaseMessage: newBase(MessageTypeTranscript), Messages: messages}
}

// CreateNoticeMessage wraps a notice
func CreateNoticeMessage(n voice.Notice) *NoticeMessage {
	return &NoticeMessage{BaseMessage: newBase(MessageTypeNotice), Notice: n}
}

// CreateSpeakMessage creates a local speech command
func CreateSpeakMessage(text, lang, voiceName string) *SpeakMessage {
	return &SpeakMessage{BaseMessage: newBase(MessageTypeSpeak), Text: text, Lang: lang, Voice: voiceName}
}

// CreateControlMessage creates a payload-less message
func CreateControlMessage(t MessageType) *ControlMessage {
	return &ControlMessage{BaseMessage: newBase(t)}
}
