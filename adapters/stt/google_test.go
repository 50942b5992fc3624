package stt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/capture"
)

var _ repositories.SpeechToText = &GoogleSpeechToText{}

func TestGetAudioEncoding(t *testing.T) {
	for _, enc := range []string{"", "LINEAR16", "WAV", "FLAC", "WEBM_OPUS"} {
		if _, err := getAudioEncoding(enc); err != nil {
			t.Errorf("getAudioEncoding(%q) error: %v", enc, err)
		}
	}
	if _, err := getAudioEncoding("MP3"); err == nil {
		t.Error("Expected error for unsupported encoding")
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want capture.ErrorKind
	}{
		{fmt.Errorf("recv: %w", status.Error(codes.Unavailable, "down")), capture.ErrorNetwork},
		{fmt.Errorf("recv: %w", status.Error(codes.PermissionDenied, "nope")), capture.ErrorNotAllowed},
		{fmt.Errorf("recv: %w", status.Error(codes.OutOfRange, "too long")), capture.ErrorAudioCapture},
		{fmt.Errorf("recv: %w", context.Canceled), capture.ErrorAborted},
		{errors.New("boom"), capture.ErrorUnknown},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestRecognizer_MockSession(t *testing.T) {
	logger := zaptest.NewLogger(t)
	r := NewRecognizer(NewMockSpeechToText(logger, "hello class"), repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US"}, logger)

	if err := r.Feed([]byte{1}); !errors.Is(err, ErrNotListening) {
		t.Errorf("Expected ErrNotListening before Start, got %v", err)
	}

	segments, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := r.Start(context.Background()); !errors.Is(err, capture.ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive, got %v", err)
	}

	if err := r.Feed([]byte{0, 1, 2, 3}); err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	var got []capture.Segment
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case seg, ok := <-segments:
			if !ok {
				done = true
				break
			}
			got = append(got, seg)
		case <-timeout:
			t.Fatal("Timed out waiting for segments")
		}
	}

	if len(got) != 2 {
		t.Fatalf("Expected interim and final segments, got %+v", got)
	}
	if got[0].Final || !got[1].Final || got[1].Text != "hello class" {
		t.Errorf("Unexpected segments %+v", got)
	}

	// the engine can be restarted once the previous stream drained
	if _, err := r.Start(context.Background()); err != nil {
		t.Errorf("Restart error: %v", err)
	}
	_ = r.Stop()
}

func TestRecognizer_StartFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	r := NewRecognizer(NewMockSpeechToText(logger, ""), repositories.AudioConfig{Encoding: "MP3"}, logger)

	if _, err := r.Start(context.Background()); err == nil {
		t.Error("Expected error for unsupported encoding")
	}

	r.Configure(repositories.AudioConfig{Encoding: "LINEAR16", SampleRate: 16000})
	if _, err := r.Start(context.Background()); err != nil {
		t.Errorf("Expected start to succeed after Configure, got %v", err)
	}
	_ = r.Stop()
}
