package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/agileassist/server/domain/repositories"
)

const resultBuffer = 16

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud recognizer. Credentials come
// from Application Default Credentials.
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

// InitTranscribeStreaming opens a continuous recognition stream with interim results
func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            int32(config.SampleRate),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.logger.Info("Google streaming recognition started",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	s := &GoogleSpeechToTextStream{
		client:  client,
		stream:  stream,
		results: make(chan repositories.RecognitionResult, resultBuffer),
		logger:  g.logger,
	}
	go s.receiveResults()
	return s, nil
}

// GoogleSpeechToTextStream is one live Google recognition stream
type GoogleSpeechToTextStream struct {
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	results chan repositories.RecognitionResult
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Stream sends audio data to Google
func (g *GoogleSpeechToTextStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errStreamClosed
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Results delivers recognized segments until the stream ends
func (g *GoogleSpeechToTextStream) Results() <-chan repositories.RecognitionResult {
	return g.results
}

// End closes the send side; pending results are still delivered
func (g *GoogleSpeechToTextStream) End() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	if err := g.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *GoogleSpeechToTextStream) receiveResults() {
	defer close(g.results)
	defer g.client.Close()

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			g.logger.Warn("Google recognition stream failed", zap.Error(err))
			g.results <- repositories.RecognitionResult{Err: fmt.Errorf("failed to receive response: %w", err)}
			return
		}

		for _, result := range resp.GetResults() {
			if len(result.GetAlternatives()) == 0 {
				continue
			}
			g.results <- repositories.RecognitionResult{
				Text:    result.GetAlternatives()[0].GetTranscript(),
				IsFinal: result.GetIsFinal(),
			}
		}
	}
}

var errStreamClosed = errors.New("recognition stream closed")

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16", "":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
