package repositories

import "context"

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// InitTranscribeStreaming initializes a streaming transcription session
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionResult is one recognized segment
type RecognitionResult struct {
	Text    string
	IsFinal bool
	Err     error
}

// SpeechToTextStreaming is one live recognition session
type SpeechToTextStreaming interface {
	// Stream sends raw audio to the recognizer
	Stream(data []byte) error
	// Results delivers interim and final segments; closed when the session ends
	Results() <-chan RecognitionResult
	// End flushes pending audio and lets the recognizer finish
	End() error
}
