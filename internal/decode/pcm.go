// SPDX-License-Identifier: MIT
package decode

import (
	"io"

	"github.com/go-audio/audio"
)

// pcmReader is the part of the go-audio WAV and AIFF decoders used here.
type pcmReader interface {
	PCMBuffer(buf *audio.IntBuffer) (int, error)
}

// intSource converts integer PCM from go-audio to float32.
type intSource struct {
	dec        pcmReader
	sampleRate int
	channels   int
	scale      float32
	offset     int // subtracted before scaling; 128 for unsigned 8-bit WAV
	buf        *audio.IntBuffer
}

func newIntSource(dec pcmReader, format *audio.Format, bitDepth, offset int) *intSource {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return &intSource{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		scale:      1 / float32(int64(1)<<(bitDepth-1)),
		offset:     offset,
		buf:        &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
	}
}

func (s *intSource) SampleRate() int { return s.sampleRate }
func (s *intSource) Channels() int   { return s.channels }
func (s *intSource) Close() error    { return nil }

func (s *intSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v-s.offset) * s.scale
	}
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
