package speaker

import (
	"fmt"
	"io"
	"sync"
)

// DefaultConsoleVoices mirrors the languages the assistant supports
var DefaultConsoleVoices = []Voice{
	{Name: "English (United States)", Lang: "en-US", Default: true},
	{Name: "Hindi (India)", Lang: "hi-IN"},
	{Name: "Tamil (India)", Lang: "ta-IN"},
	{Name: "Telugu (India)", Lang: "te-IN"},
}

// ConsoleEngine "speaks" by writing utterances to a terminal
type ConsoleEngine struct {
	mu     sync.Mutex
	out    io.Writer
	voices []Voice
}

var _ Engine = (*ConsoleEngine)(nil)

// NewConsoleEngine creates an engine writing to out; nil voices selects
// DefaultConsoleVoices
func NewConsoleEngine(out io.Writer, voices []Voice) *ConsoleEngine {
	if voices == nil {
		voices = DefaultConsoleVoices
	}
	return &ConsoleEngine{out: out, voices: voices}
}

func (c *ConsoleEngine) Voices() []Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Voice(nil), c.voices...)
}

// SetVoices replaces the voice list
func (c *ConsoleEngine) SetVoices(voices []Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voices = voices
}

func (c *ConsoleEngine) Speak(u Utterance) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	label := u.Lang
	if u.Voice != nil {
		label = u.Voice.Name
	}
	_, err := fmt.Fprintf(c.out, "🔊 [%s] %s\n", label, u.Text)
	return err
}

func (c *ConsoleEngine) Cancel() {}
