package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/capture"
)

// ErrNotListening is returned by Feed when no session is running
var ErrNotListening = errors.New("recognizer is not listening")

// Recognizer adapts a streaming SpeechToText service to capture.Engine.
// Audio is pushed with Feed as it arrives from the client.
type Recognizer struct {
	stt    repositories.SpeechToText
	logger *zap.Logger

	mu     sync.Mutex
	config repositories.AudioConfig
	stream repositories.SpeechToTextStreaming
}

var _ capture.Engine = (*Recognizer)(nil)

// NewRecognizer creates a server-side capture engine
func NewRecognizer(stt repositories.SpeechToText, config repositories.AudioConfig, logger *zap.Logger) *Recognizer {
	return &Recognizer{
		stt:    stt,
		config: config,
		logger: logger,
	}
}

// Configure replaces the audio format used by the next session
func (r *Recognizer) Configure(config repositories.AudioConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
}

// Start opens a recognition stream
func (r *Recognizer) Start(ctx context.Context) (<-chan capture.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return nil, capture.ErrAlreadyActive
	}

	stream, err := r.stt.InitTranscribeStreaming(ctx, r.config)
	if err != nil {
		return nil, fmt.Errorf("failed to init transcription: %w", err)
	}
	r.stream = stream

	segments := make(chan capture.Segment, resultBuffer)
	go r.forward(stream, segments)
	return segments, nil
}

// Feed pushes raw audio into the running session
func (r *Recognizer) Feed(data []byte) error {
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()

	if stream == nil {
		return ErrNotListening
	}
	return stream.Stream(data)
}

// Stop ends the audio input; the segment channel closes once the service
// has delivered its last result
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.End()
}

func (r *Recognizer) forward(stream repositories.SpeechToTextStreaming, segments chan<- capture.Segment) {
	defer close(segments)
	defer func() {
		r.mu.Lock()
		if r.stream == stream {
			r.stream = nil
		}
		r.mu.Unlock()
	}()

	for result := range stream.Results() {
		if result.Err != nil {
			segments <- capture.Segment{Error: errorKind(result.Err)}
			continue
		}
		segments <- capture.Segment{Text: result.Text, Final: result.IsFinal}
	}
}

// errorKind maps a recognition failure to the capture error vocabulary
func errorKind(err error) capture.ErrorKind {
	if errors.Is(err, context.Canceled) {
		return capture.ErrorAborted
	}
	switch status.Code(errors.Unwrap(err)) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return capture.ErrorNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		return capture.ErrorNotAllowed
	case codes.InvalidArgument, codes.OutOfRange:
		return capture.ErrorAudioCapture
	case codes.Canceled:
		return capture.ErrorAborted
	default:
		return capture.ErrorUnknown
	}
}
