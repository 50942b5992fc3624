package tts

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	pcmSampleRate     = 24000
	pcmChannels       = 1
	pcmBytesPerSample = 2

	wavFormatPCM = 1
)

// PCMFormat describes raw little-endian PCM audio
type PCMFormat struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// DefaultPCMFormat is what both speech providers return: 24 kHz, mono, 16-bit
var DefaultPCMFormat = PCMFormat{
	SampleRate:     pcmSampleRate,
	Channels:       pcmChannels,
	BytesPerSample: pcmBytesPerSample,
}

// EncodeWAV wraps little-endian PCM samples in a RIFF/WAVE container.
// A trailing partial frame is dropped.
func EncodeWAV(pcm []byte, format PCMFormat) ([]byte, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid PCM format %+v", format)
	}
	switch format.BytesPerSample {
	case 1, 2, 3, 4:
	default:
		return nil, fmt.Errorf("invalid PCM format %+v", format)
	}

	frame := format.Channels * format.BytesPerSample
	pcm = pcm[:len(pcm)-len(pcm)%frame]

	out := &memFile{buf: make([]byte, 0, 44+len(pcm))}
	enc := wav.NewEncoder(out, format.SampleRate, format.BytesPerSample*8, format.Channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           decodeSamples(pcm, format.BytesPerSample),
		SourceBitDepth: format.BytesPerSample * 8,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish wav: %w", err)
	}
	return out.buf, nil
}

// decodeSamples reads little-endian samples; 8-bit PCM is unsigned
func decodeSamples(pcm []byte, width int) []int {
	samples := make([]int, 0, len(pcm)/width)
	for i := 0; i+width <= len(pcm); i += width {
		switch width {
		case 1:
			samples = append(samples, int(pcm[i]))
		case 2:
			samples = append(samples, int(int16(binary.LittleEndian.Uint16(pcm[i:]))))
		case 3:
			v := int32(pcm[i]) | int32(pcm[i+1])<<8 | int32(pcm[i+2])<<16
			samples = append(samples, int(v<<8>>8))
		case 4:
			samples = append(samples, int(int32(binary.LittleEndian.Uint32(pcm[i:]))))
		}
	}
	return samples
}

// memFile is an in-memory io.WriteSeeker; the encoder seeks back to patch
// chunk sizes on Close
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		if need > cap(m.buf) {
			grown := make([]byte, need, 2*need)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:need]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	m.pos = int(abs)
	return abs, nil
}

// formatFromMIME reads the rate from MIME types such as
// "audio/L16;codec=pcm;rate=24000", falling back to DefaultPCMFormat
func formatFromMIME(mimeType string) PCMFormat {
	format := DefaultPCMFormat
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			format.SampleRate = rate
		}
	}
	return format
}
