package speaker

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

type recordingEngine struct {
	mu      sync.Mutex
	voices  []Voice
	spoken  []Utterance
	cancels int
}

func (r *recordingEngine) Voices() []Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voices
}

func (r *recordingEngine) Speak(u Utterance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, u)
	return nil
}

func (r *recordingEngine) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
}

var testVoices = []Voice{
	{Name: "Google US English", Lang: "en-US", Default: true},
	{Name: "Google UK English", Lang: "en-GB"},
	{Name: "Google हिन्दी", Lang: "hi-IN"},
	{Name: "Tamil", Lang: "ta_IN"},
}

func TestSelectVoice(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{lang: "en-US", want: "Google US English"},
		{lang: "en-gb", want: "Google UK English"},
		{lang: "hi-IN", want: "Google हिन्दी"},
		{lang: "en-IN", want: "Google US English"},
		{lang: "ta-IN", want: "Tamil"},
		{lang: "te-IN", want: ""},
		{lang: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			got := SelectVoice(testVoices, tt.lang)
			name := ""
			if got != nil {
				name = got.Name
			}
			if name != tt.want {
				t.Errorf("SelectVoice(%q) = %q, want %q", tt.lang, name, tt.want)
			}
		})
	}
}

func TestSpeaker_SpeakCancelsPrevious(t *testing.T) {
	engine := &recordingEngine{voices: testVoices}
	s := New(engine, zaptest.NewLogger(t))

	if err := s.Speak("first", "en-US"); err != nil {
		t.Fatalf("Speak() error: %v", err)
	}
	if err := s.Speak("second", "hi-IN"); err != nil {
		t.Fatalf("Speak() error: %v", err)
	}

	if engine.cancels != 2 {
		t.Errorf("Expected a cancel before each utterance, got %d", engine.cancels)
	}
	if len(engine.spoken) != 2 {
		t.Fatalf("Expected 2 utterances, got %d", len(engine.spoken))
	}
	last := engine.spoken[1]
	if last.Text != "second" || last.Voice == nil || last.Voice.Lang != "hi-IN" {
		t.Errorf("Unexpected utterance %+v", last)
	}
}

func TestSpeaker_UnknownLanguageUsesEngineDefault(t *testing.T) {
	engine := &recordingEngine{voices: testVoices}
	s := New(engine, zaptest.NewLogger(t))

	_ = s.Speak("bonjour", "fr-FR")
	if len(engine.spoken) != 1 || engine.spoken[0].Voice != nil {
		t.Errorf("Expected nil voice for unsupported language, got %+v", engine.spoken)
	}
}

func TestSpeaker_DefersUntilVoicesLoad(t *testing.T) {
	engine := &recordingEngine{}
	s := New(engine, zaptest.NewLogger(t))

	if err := s.Speak("hello", "en-US"); err != nil {
		t.Fatalf("Speak() error: %v", err)
	}
	if len(engine.spoken) != 0 || !s.Pending() {
		t.Fatal("Expected utterance to be deferred")
	}

	// voices still empty: keep waiting
	_ = s.VoicesChanged()
	if !s.Pending() {
		t.Fatal("Expected utterance to stay deferred")
	}

	engine.voices = testVoices
	_ = s.VoicesChanged()
	_ = s.VoicesChanged()

	if len(engine.spoken) != 1 {
		t.Fatalf("Expected deferred utterance to play exactly once, got %d", len(engine.spoken))
	}
	if engine.spoken[0].Voice == nil || engine.spoken[0].Voice.Lang != "en-US" {
		t.Errorf("Unexpected voice %+v", engine.spoken[0].Voice)
	}
}

func TestSpeaker_CancelDropsDeferred(t *testing.T) {
	engine := &recordingEngine{}
	s := New(engine, zaptest.NewLogger(t))

	_ = s.Speak("hello", "en-US")
	s.Cancel()
	s.Cancel()

	engine.voices = testVoices
	_ = s.VoicesChanged()
	if len(engine.spoken) != 0 {
		t.Errorf("Cancelled utterance should not play, got %d", len(engine.spoken))
	}
}

func TestSpeaker_IgnoresEmptyText(t *testing.T) {
	engine := &recordingEngine{voices: testVoices}
	s := New(engine, zaptest.NewLogger(t))

	_ = s.Speak("   ", "en-US")
	if len(engine.spoken) != 0 || engine.cancels != 0 {
		t.Error("Empty text should be a no-op")
	}
}

func TestConsoleEngine(t *testing.T) {
	var out bytes.Buffer
	s := New(NewConsoleEngine(&out, nil), zaptest.NewLogger(t))

	_ = s.Speak("Namaste", "hi-IN")
	if !strings.Contains(out.String(), "[Hindi (India)] Namaste") {
		t.Errorf("Unexpected console output %q", out.String())
	}
}
