// SPDX-License-Identifier: MIT
package fourier

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PrefixSpectrum answers range queries in constant time from running sums
// of the bin magnitudes. It treats each bin as a constant over one index
// unit, so MagnitudeIn is the exact mean of that step function. It trades
// the smoothness of Spectrum.MagnitudeIn for speed on tall displays.
type PrefixSpectrum struct {
	*Spectrum
	left  []float64 // left[j] is the sum of bins [0, j).
	right []float64
}

var _ FrequencySample = (*PrefixSpectrum)(nil)

// NewPrefixSpectrum precomputes the running sums for s.
func NewPrefixSpectrum(s *Spectrum) *PrefixSpectrum {
	n := s.NumBins()
	left := make([]float64, n+1)
	right := make([]float64, n+1)
	for i, b := range s.bins {
		left[i+1] = float64(b.Left())
		right[i+1] = float64(b.Right())
	}
	floats.CumSum(left, left)
	floats.CumSum(right, right)
	return &PrefixSpectrum{Spectrum: s, left: left, right: right}
}

// below returns the integral of the step function from index 0 to x.
func (p *PrefixSpectrum) below(x float64) (float64, float64) {
	i := int(math.Floor(x))
	frac := x - float64(i)
	if i >= p.NumBins() {
		return p.left[p.NumBins()], p.right[p.NumBins()]
	}
	b := p.bins[i]
	return p.left[i] + frac*float64(b.Left()), p.right[i] + frac*float64(b.Right())
}

// MagnitudeIn returns the mean of the bin step function over r. Ranges
// narrower than a thousandth of a bin fall back to MagnitudeAt.
func (p *PrefixSpectrum) MagnitudeIn(r FrequencyRange) StereoMagnitude {
	if p.NumBins() == 0 {
		return 0
	}
	a, b := p.Index(r.Start), p.Index(r.End)
	if b < a {
		a, b = b, a
	}
	width := b - a
	if width < 1e-3 {
		return p.MagnitudeAt(r.Center())
	}
	la, ra := p.below(a)
	lb, rb := p.below(b)
	return NewStereoMagnitude(float32((lb-la)/width), float32((rb-ra)/width))
}
