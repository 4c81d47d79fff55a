// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// DecodeWAV reads integer PCM WAV files of any common bit depth.
func DecodeWAV(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrInvalidFile)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	format := dec.Format()
	if format == nil || format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing WAV format chunk", ErrInvalidFile)
	}
	offset := 0
	if dec.BitDepth == 8 {
		offset = 128
	}
	return newIntSource(dec, format, int(dec.BitDepth), offset), nil
}
