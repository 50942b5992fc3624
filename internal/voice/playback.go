package voice

import (
	"context"
	"errors"

	"github.com/agileassist/server/domain/repositories"
)

var (
	errNoSpeechClient = errors.New("no speech client")
	errEmptyMedia     = errors.New("speech service returned no media")
)

// VoiceResult is either Synthesized or Fallback
type VoiceResult interface {
	voiceResult()
}

// Synthesized carries server-generated audio
type Synthesized struct {
	Media string
}

// Fallback means the text must be spoken locally
type Fallback struct {
	Reason      error
	RateLimited bool
}

func (Synthesized) voiceResult() {}
func (Fallback) voiceResult() {}

// Voice tries server synthesis and reports how the answer should be played
func Voice(ctx context.Context, speech SpeechClient, text, languageCode string) VoiceResult {
	if speech == nil {
		return Fallback{Reason: errNoSpeechClient}
	}

	media, err := speech.Synthesize(ctx, text, languageCode)
	if err != nil {
		return Fallback{Reason: err, RateLimited: repositories.IsRateLimited(err)}
	}
	if media == "" {
		return Fallback{Reason: errEmptyMedia}
	}
	return Synthesized{Media: media}
}
