package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/agileassist/server/domain/repositories"
)

// MockTTS returns a short silent clip sized to the text
type MockTTS struct{}

var _ repositories.SpeechService = (*MockTTS)(nil)

// NewMockTTS creates a new mock speech provider
func NewMockTTS() *MockTTS {
	return &MockTTS{}
}

// Synthesize implements repositories.SpeechService
func (m *MockTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (repositories.Speech, error) {
	if err := ctx.Err(); err != nil {
		return repositories.Speech{}, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return repositories.Speech{}, fmt.Errorf("text cannot be empty")
	}

	// 20ms of silence per word
	words := len(strings.Fields(req.Text))
	samples := words * DefaultPCMFormat.SampleRate / 50
	pcm := make([]byte, samples*DefaultPCMFormat.BytesPerSample)

	wav, err := EncodeWAV(pcm, DefaultPCMFormat)
	if err != nil {
		return repositories.Speech{}, err
	}
	return repositories.Speech{Media: DataURI(MIMETypeWAV, wav), MIMEType: MIMETypeWAV}, nil
}
