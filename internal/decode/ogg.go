// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

type oggSource struct {
	dec *oggvorbis.Reader
}

// DecodeOgg reads Ogg Vorbis streams.
func DecodeOgg(r io.ReadSeeker) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return &oggSource{dec: dec}, nil
}

func (s *oggSource) SampleRate() int { return s.dec.SampleRate() }
func (s *oggSource) Channels() int   { return s.dec.Channels() }
func (s *oggSource) Close() error    { return nil }

// ReadSamples reads whole frames only; dst is trimmed to a multiple of the
// channel count.
func (s *oggSource) ReadSamples(dst []float32) (int, error) {
	ch := s.dec.Channels()
	dst = dst[:len(dst)/ch*ch]
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := s.dec.Read(dst)
	return n, err
}
