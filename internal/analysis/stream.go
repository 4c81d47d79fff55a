// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"spectrogram/internal/fourier"
	"spectrogram/internal/ringbuf"
)

// ErrInvalidStride is returned when the hop between windows is not positive.
var ErrInvalidStride = errors.New("analysis: stride must be positive")

// StreamTransform slides a Transform over the consumer side of a sample ring.
// Each spectrum is computed from a peeked window; on success the ring is
// advanced by the stride only, so consecutive windows overlap by N-S samples.
//
// A StreamTransform is owned by a single goroutine. It never blocks and has
// no timer of its own: the owner calls Process once per tick.
type StreamTransform struct {
	consumer  *ringbuf.Consumer[fourier.StereoSample]
	transform *fourier.Transform
	stride    int

	// debt holds samples still to be skipped when a stride larger than the
	// buffered amount could not be committed in full.
	debt int
}

// NewStreamTransform builds a driver with a stride given in seconds, rounded
// to the nearest whole sample at the transform's sample rate.
func NewStreamTransform(
	consumer *ringbuf.Consumer[fourier.StereoSample],
	transform *fourier.Transform,
	strideSeconds float64,
) (*StreamTransform, error) {
	if !(strideSeconds > 0) || math.IsInf(strideSeconds, 0) {
		return nil, fmt.Errorf("%w: got %v s", ErrInvalidStride, strideSeconds)
	}
	return NewStreamTransformStride(consumer, transform, int(math.Round(strideSeconds*transform.SampleRate())))
}

// NewStreamTransformStride builds a driver with a stride given in samples.
func NewStreamTransformStride(
	consumer *ringbuf.Consumer[fourier.StereoSample],
	transform *fourier.Transform,
	strideSamples int,
) (*StreamTransform, error) {
	if consumer == nil || transform == nil {
		return nil, errors.New("analysis: consumer and transform are required")
	}
	if strideSamples <= 0 {
		return nil, fmt.Errorf("%w: got %d samples", ErrInvalidStride, strideSamples)
	}
	if consumer.Capacity() < transform.NumInputSamples() {
		return nil, fmt.Errorf("analysis: ring capacity %d cannot hold a window of %d samples",
			consumer.Capacity(), transform.NumInputSamples())
	}
	return &StreamTransform{
		consumer:  consumer,
		transform: transform,
		stride:    strideSamples,
	}, nil
}

// StrideSamples is the hop between consecutive windows.
func (s *StreamTransform) StrideSamples() int { return s.stride }

// Transform returns the windowed transform the driver applies.
func (s *StreamTransform) Transform() *fourier.Transform { return s.transform }

// Buffered is the number of samples waiting in the ring.
func (s *StreamTransform) Buffered() int { return s.consumer.Len() }

// next computes one spectrum and commits the stride. It reports false when
// the ring does not hold a full window; nothing is consumed in that case.
func (s *StreamTransform) next() (*fourier.Spectrum, bool) {
	if s.debt > 0 {
		s.debt -= s.consumer.Skip(s.debt)
		if s.debt > 0 {
			return nil, false
		}
	}
	n := s.transform.NumInputSamples()
	spectrum, ok := s.transform.Process(s.consumer.Peek(n))
	if !ok {
		return nil, false
	}
	s.debt = s.stride - s.consumer.Skip(s.stride)
	return spectrum, true
}

// ProcessN drains at most limit ready spectra, oldest first. A limit of zero
// or less means no bound. An empty result means the driver has caught up.
func (s *StreamTransform) ProcessN(limit int) []*fourier.Spectrum {
	var out []*fourier.Spectrum
	for limit <= 0 || len(out) < limit {
		spectrum, ok := s.next()
		if !ok {
			break
		}
		out = append(out, spectrum)
	}
	return out
}

// Process drains every spectrum that is currently ready.
func (s *StreamTransform) Process() []*fourier.Spectrum {
	return s.ProcessN(0)
}

// Spectra is the lazy form of Process. Each pull computes one spectrum;
// stopping early leaves the remaining windows in the ring.
func (s *StreamTransform) Spectra() iter.Seq[*fourier.Spectrum] {
	return func(yield func(*fourier.Spectrum) bool) {
		for {
			spectrum, ok := s.next()
			if !ok || !yield(spectrum) {
				return
			}
		}
	}
}
