// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

// DecodeAIFF reads integer PCM AIFF files.
func DecodeAIFF(r io.ReadSeeker) (Source, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an AIFF file", ErrInvalidFile)
	}
	dec.ReadInfo()
	format := dec.Format()
	if format == nil || format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing AIFF common chunk", ErrInvalidFile)
	}
	return newIntSource(dec, format, int(dec.BitDepth), 0), nil
}
