package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/agileassist/server/domain/repositories"
)

func TestEncodeWAV(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	wav, err := EncodeWAV(pcm, DefaultPCMFormat)
	if err != nil {
		t.Fatalf("EncodeWAV() error: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Fatalf("Expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Error("Missing RIFF/WAVE/data markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("Expected mono, got %d channels", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("Expected 16-bit samples, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("Expected data length %d, got %d", len(pcm), got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("PCM payload was altered")
	}
}

func TestEncodeWAV_InvalidFormat(t *testing.T) {
	formats := []PCMFormat{
		{},
		{SampleRate: 24000, Channels: 1},
		{SampleRate: 24000, Channels: 1, BytesPerSample: 5},
	}
	for _, f := range formats {
		if _, err := EncodeWAV(nil, f); err == nil {
			t.Errorf("Expected error for format %+v", f)
		}
	}
}

func TestEncodeWAV_Layouts(t *testing.T) {
	tests := []struct {
		name     string
		pcm      []byte
		format   PCMFormat
		wantData []byte
	}{
		{
			name:     "trailing partial frame dropped",
			pcm:      []byte{0x01, 0x00, 0xff, 0x7f, 0x09},
			format:   DefaultPCMFormat,
			wantData: []byte{0x01, 0x00, 0xff, 0x7f},
		},
		{
			name:     "stereo 16-bit",
			pcm:      []byte{0x00, 0x80, 0xff, 0xff, 0x10, 0x00, 0x20, 0x00},
			format:   PCMFormat{SampleRate: 16000, Channels: 2, BytesPerSample: 2},
			wantData: []byte{0x00, 0x80, 0xff, 0xff, 0x10, 0x00, 0x20, 0x00},
		},
		{
			name:     "mono 24-bit",
			pcm:      []byte{0x01, 0x02, 0x03, 0xff, 0xff, 0xff},
			format:   PCMFormat{SampleRate: 48000, Channels: 1, BytesPerSample: 3},
			wantData: []byte{0x01, 0x02, 0x03, 0xff, 0xff, 0xff},
		},
		{
			name:     "empty",
			pcm:      nil,
			format:   DefaultPCMFormat,
			wantData: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wav, err := EncodeWAV(tt.pcm, tt.format)
			if err != nil {
				t.Fatalf("EncodeWAV() error: %v", err)
			}
			if len(wav) != 44+len(tt.wantData) {
				t.Fatalf("Expected %d bytes, got %d", 44+len(tt.wantData), len(wav))
			}
			if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(tt.wantData)) {
				t.Errorf("Expected RIFF size %d, got %d", 36+len(tt.wantData), got)
			}
			if got := binary.LittleEndian.Uint16(wav[22:24]); got != uint16(tt.format.Channels) {
				t.Errorf("Expected %d channels, got %d", tt.format.Channels, got)
			}
			if got := binary.LittleEndian.Uint32(wav[24:28]); got != uint32(tt.format.SampleRate) {
				t.Errorf("Expected sample rate %d, got %d", tt.format.SampleRate, got)
			}
			if got := binary.LittleEndian.Uint16(wav[34:36]); got != uint16(tt.format.BytesPerSample*8) {
				t.Errorf("Expected %d-bit samples, got %d", tt.format.BytesPerSample*8, got)
			}
			if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(tt.wantData)) {
				t.Errorf("Expected data length %d, got %d", len(tt.wantData), got)
			}
			if !bytes.Equal(wav[44:], tt.wantData) {
				t.Errorf("PCM payload = %x, want %x", wav[44:], tt.wantData)
			}
		})
	}
}

func TestFormatFromMIME(t *testing.T) {
	if got := formatFromMIME("audio/L16;codec=pcm;rate=16000").SampleRate; got != 16000 {
		t.Errorf("Expected 16000, got %d", got)
	}
	if got := formatFromMIME("audio/L16").SampleRate; got != 24000 {
		t.Errorf("Expected default 24000, got %d", got)
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI("audio/wav", []byte("abc"))
	if !strings.HasPrefix(uri, "data:audio/wav;base64,") {
		t.Fatalf("Unexpected data URI %s", uri)
	}

	mimeType, data, err := DecodeDataURI(uri)
	if err != nil || mimeType != "audio/wav" || string(data) != "abc" {
		t.Errorf("DecodeDataURI() = %q, %q, %v", mimeType, data, err)
	}

	for _, bad := range []string{"audio/wav;base64,abc", "data:audio/wav,abc", "data:audio/wav;base64"} {
		if _, _, err := DecodeDataURI(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestMockTTS(t *testing.T) {
	speech, err := NewMockTTS().Synthesize(context.Background(), repositories.SpeechRequest{Text: "two words"})
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	_, wav, err := DecodeDataURI(speech.Media)
	if err != nil {
		t.Fatalf("DecodeDataURI() error: %v", err)
	}
	if len(wav) <= 44 {
		t.Error("Expected silent samples after the header")
	}
	if _, err := NewMockTTS().Synthesize(context.Background(), repositories.SpeechRequest{}); err == nil {
		t.Error("Expected error for empty text")
	}
}
