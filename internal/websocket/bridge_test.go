package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/agileassist/server/internal/capture"
	"github.com/agileassist/server/internal/speaker"
)

type outbox struct {
	mu   sync.Mutex
	sent []interface{}
}

func (o *outbox) send(v interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, v)
}

func (o *outbox) last() interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return nil
	}
	return o.sent[len(o.sent)-1]
}

func TestRemoteRecognizer(t *testing.T) {
	out := &outbox{}
	r := NewRemoteRecognizer(out.send, func() string { return "ta-IN" })

	if r.Push(capture.Segment{Text: "early"}) {
		t.Error("Push before Start should be dropped")
	}

	segments, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	start, ok := out.last().(*RecognitionStartMessage)
	if !ok || start.Lang != "ta-IN" {
		t.Fatalf("Expected recognition_start in ta-IN, got %#v", out.last())
	}

	if _, err := r.Start(context.Background()); !errors.Is(err, capture.ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive, got %v", err)
	}

	r.Push(capture.Segment{Text: "வணக்கம்", Final: true})
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if stop, ok := out.last().(*ControlMessage); !ok || stop.Type != MessageTypeRecognitionStop {
		t.Errorf("Expected recognition_stop, got %#v", out.last())
	}
	r.End()

	var got []capture.Segment
	for seg := range segments {
		got = append(got, seg)
	}
	if len(got) != 1 || got[0].Text != "வணக்கம்" || !got[0].Final {
		t.Errorf("Unexpected segments %+v", got)
	}

	// a new session can start once the browser ended the last one
	if _, err := r.Start(context.Background()); err != nil {
		t.Errorf("Restart error: %v", err)
	}
	r.End()
}

func TestRemoteRecognizerThroughAdapter(t *testing.T) {
	out := &outbox{}
	r := NewRemoteRecognizer(out.send, func() string { return "en-US" })
	adapter := capture.NewAdapter(r, zaptest.NewLogger(t), capture.WithQuietInterval(0))

	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	r.Push(capture.Segment{Text: "what is"})
	r.Push(capture.Segment{Text: "what is a sprint", Final: true})
	_ = adapter.Stop()
	r.End()

	var events []string
	for ev := range adapter.Events() {
		events = append(events, ev.String())
		if ev.Kind == capture.EventEnded {
			break
		}
	}

	want := []string{"interim(what is)", "interim(what is a sprint)", "final(what is a sprint)", "ended"}
	if len(events) != len(want) {
		t.Fatalf("Expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("Event %d = %s, want %s", i, events[i], want[i])
		}
	}
	_ = adapter.Close()
}

func TestRemoteSpeechEngine(t *testing.T) {
	out := &outbox{}
	engine := NewRemoteSpeechEngine(out.send)
	sp := speaker.New(engine, zaptest.NewLogger(t))

	// no voices yet: the utterance waits
	if err := sp.Speak("नमस्ते", "hi-IN"); err != nil {
		t.Fatalf("Speak() error: %v", err)
	}
	if _, ok := out.last().(*SpeakMessage); ok {
		t.Fatal("Speech should wait for voices")
	}

	engine.SetVoices([]VoiceInfo{
		{Name: "Google US English", Lang: "en-US", Default: true},
		{Name: "Google हिन्दी", Lang: "hi-IN"},
	})
	if err := sp.VoicesChanged(); err != nil {
		t.Fatalf("VoicesChanged() error: %v", err)
	}

	speak, ok := out.last().(*SpeakMessage)
	if !ok {
		t.Fatalf("Expected speak message, got %#v", out.last())
	}
	if speak.Text != "नमस्ते" || speak.Lang != "hi-IN" || speak.Voice != "Google हिन्दी" {
		t.Errorf("Unexpected speak message %+v", speak)
	}

	sp.Cancel()
	if cancel, ok := out.last().(*ControlMessage); !ok || cancel.Type != MessageTypeSpeakCancel {
		t.Errorf("Expected speak_cancel, got %#v", out.last())
	}

	voices := engine.Voices()
	voices[0].Name = "mutated"
	if engine.Voices()[0].Name == "mutated" {
		t.Error("Voices() should return a copy")
	}
}
