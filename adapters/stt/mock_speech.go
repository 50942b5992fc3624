package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/agileassist/server/domain/repositories"
)

const defaultMockTranscript = "What is a sprint retrospective?"

// MockSpeechToText recognizes a fixed transcript once any audio was streamed
type MockSpeechToText struct {
	logger     *zap.Logger
	transcript string
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger, transcript string) *MockSpeechToText {
	if transcript == "" {
		transcript = defaultMockTranscript
	}
	return &MockSpeechToText{
		logger:     logger,
		transcript: transcript,
	}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	if _, err := getAudioEncoding(config.Encoding); err != nil {
		return nil, err
	}

	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger:     s.logger,
		transcript: s.transcript,
		results:    make(chan repositories.RecognitionResult, resultBuffer),
	}, nil
}

// MockSpeechToTextStream emits an interim result per audio chunk and the
// transcript as a final result on End
type MockSpeechToTextStream struct {
	logger     *zap.Logger
	transcript string
	results    chan repositories.RecognitionResult

	mu            sync.Mutex
	audioReceived bool
	ended         bool
}

// Stream implements mock streaming audio processing
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return errStreamClosed
	}
	if len(data) == 0 {
		return nil
	}

	m.logger.Debug("Processing mock audio chunk", zap.Int("size", len(data)))
	if !m.audioReceived {
		m.audioReceived = true
		select {
		case m.results <- repositories.RecognitionResult{Text: m.transcript}:
		default:
		}
	}
	return nil
}

// Results implements repositories.SpeechToTextStreaming
func (m *MockSpeechToTextStream) Results() <-chan repositories.RecognitionResult {
	return m.results
}

// End delivers the final transcript and closes the stream
func (m *MockSpeechToTextStream) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return nil
	}
	m.ended = true

	if m.audioReceived {
		m.results <- repositories.RecognitionResult{Text: m.transcript, IsFinal: true}
	}
	close(m.results)
	return nil
}
