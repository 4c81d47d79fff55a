// SPDX-License-Identifier: MIT
package audio

import (
	"spectrogram/internal/fourier"
	"spectrogram/internal/ringbuf"
)

// SampleProducer is the capture side of a pipeline's sample ring.
type SampleProducer = ringbuf.Producer[fourier.StereoSample]

// Ingest pushes interleaved frames into p and returns how many frames the
// ring accepted. Mono input is duplicated to both channels; channels past
// the second are ignored. Frames that do not fit are dropped.
//
// Ingest runs on the audio callback: it never allocates, locks or logs.
func Ingest(p *SampleProducer, interleaved []float32, channels int) int {
	if p == nil || channels <= 0 {
		return 0
	}
	pushed := 0
	switch channels {
	case 1:
		for _, v := range interleaved {
			if p.Push(fourier.Mono(v)) {
				pushed++
			}
		}
	default:
		for i := 0; i+channels <= len(interleaved); i += channels {
			if p.Push(fourier.StereoSample{Left: interleaved[i], Right: interleaved[i+1]}) {
				pushed++
			}
		}
	}
	return pushed
}

// IngestPlanar pushes separate channel buffers. A nil right channel means
// mono input. The shorter channel determines the frame count.
func IngestPlanar(p *SampleProducer, left, right []float32) int {
	if p == nil {
		return 0
	}
	if right == nil {
		return Ingest(p, left, 1)
	}
	n := min(len(left), len(right))
	pushed := 0
	for i := range n {
		if p.Push(fourier.StereoSample{Left: left[i], Right: right[i]}) {
			pushed++
		}
	}
	return pushed
}
