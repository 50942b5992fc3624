package speaker

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Voice is one synthesis voice offered by an engine
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// Utterance is a single speak request; a nil Voice means the engine default
type Utterance struct {
	Text  string
	Lang  string
	Voice *Voice
}

// Engine is a local speech synthesizer
type Engine interface {
	// Voices returns the currently known voices; the list may be empty
	// until the engine has loaded them
	Voices() []Voice
	Speak(u Utterance) error
	Cancel()
}

// SelectVoice picks the voice for lang: an exact case-insensitive tag match,
// then the first voice of the same language family, else nil
func SelectVoice(voices []Voice, lang string) *Voice {
	if lang == "" {
		return nil
	}
	for i := range voices {
		if strings.EqualFold(voices[i].Lang, lang) {
			return &voices[i]
		}
	}

	family := languageFamily(lang)
	for i := range voices {
		if strings.EqualFold(languageFamily(voices[i].Lang), family) {
			return &voices[i]
		}
	}
	return nil
}

func languageFamily(tag string) string {
	tag = strings.ReplaceAll(tag, "_", "-")
	family, _, _ := strings.Cut(tag, "-")
	return family
}

// Speaker speaks text through a local engine. Only one utterance is ever
// active: a new Speak cancels whatever is playing or queued.
type Speaker struct {
	engine Engine
	logger *zap.Logger

	mu      sync.Mutex
	pending *Utterance
}

// New creates a speaker over engine
func New(engine Engine, logger *zap.Logger) *Speaker {
	return &Speaker{
		engine: engine,
		logger: logger,
	}
}

// Speak cancels current output and speaks text in lang. When the engine has
// not loaded its voices yet the utterance is held until VoicesChanged.
func (s *Speaker) Speak(text, lang string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Cancel()
	s.pending = nil

	u := Utterance{Text: text, Lang: lang}
	voices := s.engine.Voices()
	if len(voices) == 0 {
		s.logger.Debug("Voices not loaded, deferring utterance", zap.String("lang", lang))
		s.pending = &u
		return nil
	}

	return s.speakLocked(u, voices)
}

// VoicesChanged speaks the deferred utterance, if any, exactly once
func (s *Speaker) VoicesChanged() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return nil
	}
	voices := s.engine.Voices()
	if len(voices) == 0 {
		return nil
	}

	u := *s.pending
	s.pending = nil
	return s.speakLocked(u, voices)
}

// Cancel stops current output and drops any deferred utterance
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.engine.Cancel()
}

// Pending reports whether an utterance is waiting for voices
func (s *Speaker) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Speaker) speakLocked(u Utterance, voices []Voice) error {
	u.Voice = SelectVoice(voices, u.Lang)

	voiceName := ""
	if u.Voice != nil {
		voiceName = u.Voice.Name
	}
	s.logger.Debug("Speaking locally",
		zap.String("lang", u.Lang),
		zap.String("voice", voiceName),
		zap.Int("textLength", len(u.Text)))

	if err := s.engine.Speak(u); err != nil {
		return fmt.Errorf("failed to speak: %w", err)
	}
	return nil
}
