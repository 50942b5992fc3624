package repositories

import "context"

// SpeechService abstracts text-to-speech providers
type SpeechService interface {
	// Synthesize converts text into encoded audio
	Synthesize(ctx context.Context, req SpeechRequest) (Speech, error)
}

// SpeechRequest describes what to synthesize
type SpeechRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// Speech is the synthesized audio
type Speech struct {
	// Media is a data URI, e.g. data:audio/wav;base64,...
	Media    string `json:"media"`
	MIMEType string `json:"-"`
}
