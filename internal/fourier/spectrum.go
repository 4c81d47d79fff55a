// SPDX-License-Identifier: MIT
package fourier

import "math"

// FrequencyRange is a half-open band of frequencies in Hz.
type FrequencyRange struct {
	Start float64
	End   float64
}

// Width returns End - Start.
func (r FrequencyRange) Width() float64 { return r.End - r.Start }

// Center returns the midpoint of the range.
func (r FrequencyRange) Center() float64 { return (r.Start + r.End) / 2 }

// FrequencySample is the query surface renderers use to read a spectrum
// without knowing about bin indices.
type FrequencySample interface {
	SampleRate() float64
	NumBins() int
	Period() float64
	Frequencies() FrequencyRange
	MagnitudeAt(frequency float64) StereoMagnitude
	MagnitudeIn(r FrequencyRange) StereoMagnitude
}

// Spectrum is an immutable set of per-bin stereo magnitudes together with
// the sample rate they were computed at.
type Spectrum struct {
	bins       []StereoMagnitude
	sampleRate float64
	interp     Interpolator
}

var _ FrequencySample = (*Spectrum)(nil)

// NewSpectrum wraps bins, taking ownership of the slice. A nil interp selects
// CubicInterpolate.
func NewSpectrum(bins []StereoMagnitude, sampleRate float64, interp Interpolator) *Spectrum {
	if interp == nil {
		interp = CubicInterpolate
	}
	return &Spectrum{bins: bins, sampleRate: sampleRate, interp: interp}
}

// SampleRate returns the rate the source audio was captured at.
func (s *Spectrum) SampleRate() float64 { return s.sampleRate }

// NumBins returns the number of frequency bins.
func (s *Spectrum) NumBins() int { return len(s.bins) }

// Period converts between frequency and fractional bin index:
// index = frequency * Period().
func (s *Spectrum) Period() float64 {
	return 2 * float64(len(s.bins)) / s.sampleRate
}

// Frequencies returns the valid query range, 0 to Nyquist.
func (s *Spectrum) Frequencies() FrequencyRange {
	return FrequencyRange{Start: 0, End: s.sampleRate / 2}
}

// Bin returns the raw magnitude of bin k. k is clamped to the valid range.
func (s *Spectrum) Bin(k int) StereoMagnitude {
	if len(s.bins) == 0 {
		return 0
	}
	return s.bins[min(max(k, 0), len(s.bins)-1)]
}

// Bins returns a copy of all bins.
func (s *Spectrum) Bins() []StereoMagnitude {
	out := make([]StereoMagnitude, len(s.bins))
	copy(out, s.bins)
	return out
}

// Index maps frequency to a fractional bin index clamped to
// [0, NumBins()-1]. Out of range frequencies are clamped, not rejected.
func (s *Spectrum) Index(frequency float64) float64 {
	idx := frequency * s.Period()
	if math.IsNaN(idx) || idx < 0 {
		return 0
	}
	return min(idx, float64(len(s.bins)-1))
}

// MagnitudeAt interpolates the spectrum at frequency.
func (s *Spectrum) MagnitudeAt(frequency float64) StereoMagnitude {
	if len(s.bins) == 0 {
		return 0
	}
	return s.interp(s.bins, s.Index(frequency))
}

// MagnitudeIn returns the mean magnitude across r.
//
// The range is sampled at max(1, floor(Index(End) - Index(Start))) points,
// evenly spaced in frequency at the centre of each sub-interval, and each
// point is evaluated with MagnitudeAt. A single point lands on the midpoint
// of r.
func (s *Spectrum) MagnitudeIn(r FrequencyRange) StereoMagnitude {
	if len(s.bins) == 0 {
		return 0
	}
	a, b := r.Start, r.End
	if b < a {
		a, b = b, a
	}

	n := max(int(math.Floor(s.Index(b)-s.Index(a))), 1)
	if n == 1 {
		return s.MagnitudeAt((a + b) / 2)
	}
	step := (b - a) / float64(n)

	var left, right float64
	for i := range n {
		m := s.MagnitudeAt(a + (float64(i)+0.5)*step)
		left += float64(m.Left())
		right += float64(m.Right())
	}
	return NewStereoMagnitude(float32(left/float64(n)), float32(right/float64(n)))
}
