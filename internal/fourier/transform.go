// SPDX-License-Identifier: MIT
/*
Package fourier converts blocks of stereo audio into per-channel magnitude
spectra and answers frequency-domain queries against them.

A window of N stereo samples is packed into one complex sequence, l + i*r,
tapered, zero padded to 2N and transformed with a single complex FFT. Both
channel spectra are recovered from that one transform using conjugate
symmetry: for X = FFT(l + i*r),

	L[k] = (X[k] + conj(X[2N-k])) / 2
	R[k] = (X[k] - conj(X[2N-k])) / (2i)

so |L[k]| = |a + conj(b)| / 2 and |R[k]| = |a - conj(b)| / 2 with
a = X[k] and b = X[(2N-k) mod 2N]. Taking the index modulo 2N makes bin 0
use X[0] for both terms, which is exact for the DC bin as well.
*/
package fourier

import (
	"fmt"
	"iter"
	"math"
	"math/cmplx"

	gofourier "gonum.org/v1/gonum/dsp/fourier"
)

// Transform turns windows of stereo samples into Spectra. The FFT plan and
// work buffers are sized at construction and reused, so a Transform must be
// rebuilt when the sample rate or period changes. A Transform is not safe
// for concurrent use.
type Transform struct {
	sampleRate float64
	period     float64
	window     WindowFunc
	interp     Interpolator

	n      int       // Input samples per window.
	coeffs []float64 // Window taper, length n.
	fft    *gofourier.CmplxFFT
	input  []complex128 // Windowed and zero padded samples, length 2n.
	output []complex128 // FFT coefficients, length 2n.
}

// Option configures a Transform.
type Option func(*Transform)

// WithWindow selects the taper. The default is Hann.
func WithWindow(w WindowFunc) Option {
	return func(t *Transform) { t.window = w }
}

// WithInterpolator sets the interpolator attached to produced spectra.
func WithInterpolator(interp Interpolator) Option {
	return func(t *Transform) {
		if interp != nil {
			t.interp = interp
		}
	}
}

// MaxInputSamples caps the window length.
const MaxInputSamples = 1 << 24

// NewTransform builds a Transform whose window holds
// floor(period * sampleRate) samples.
func NewTransform(sampleRate, period float64, opts ...Option) (*Transform, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
	}
	if period*sampleRate > MaxInputSamples {
		return nil, fmt.Errorf("%w: period %vs at %v Hz exceeds %d samples", ErrInvalidPeriod, period, sampleRate, MaxInputSamples)
	}
	n := int(math.Floor(period * sampleRate))
	if n < 2 {
		return nil, fmt.Errorf("%w: period %vs at %v Hz gives %d", ErrWindowTooSmall, period, sampleRate, n)
	}

	t := &Transform{
		sampleRate: sampleRate,
		period:     period,
		window:     Hann,
		interp:     CubicInterpolate,
		n:          n,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.coeffs = t.window.Coefficients(n)
	t.fft = gofourier.NewCmplxFFT(2 * n)
	t.input = make([]complex128, 2*n)
	t.output = make([]complex128, 2*n)
	return t, nil
}

// SampleRate returns the configured sample rate in Hz.
func (t *Transform) SampleRate() float64 { return t.sampleRate }

// Period returns the configured window period in seconds.
func (t *Transform) Period() float64 { return t.period }

// Window returns the taper in use.
func (t *Transform) Window() WindowFunc { return t.window }

// NumInputSamples is the number of samples one Process call consumes.
func (t *Transform) NumInputSamples() int { return t.n }

// NumFrequencies is the number of bins in each produced Spectrum.
func (t *Transform) NumFrequencies() int { return t.n + 1 }

// Process pulls up to NumInputSamples samples from samples and transforms
// them. It returns false, and no spectrum, if the sequence ends before a
// full window was read. The sequence is never advanced past the window.
func (t *Transform) Process(samples iter.Seq[StereoSample]) (*Spectrum, bool) {
	count := 0
	for s := range samples {
		w := t.coeffs[count]
		t.input[count] = complex(float64(s.Left)*w, float64(s.Right)*w)
		count++
		if count == t.n {
			break
		}
	}
	if count < t.n {
		return nil, false
	}
	clear(t.input[t.n:])

	t.fft.Coefficients(t.output, t.input)

	size := len(t.output)
	scale := 2 / float64(t.n)
	bins := make([]StereoMagnitude, t.n+1)
	for k := range bins {
		a := t.output[k]
		b := cmplx.Conj(t.output[(size-k)%size])
		left := cmplx.Abs(a+b) / 2 * scale
		right := cmplx.Abs(a-b) / 2 * scale
		bins[k] = NewStereoMagnitude(float32(left), float32(right))
	}
	return NewSpectrum(bins, t.sampleRate, t.interp), true
}

// Samples adapts a slice to the iterator form Process expects.
func Samples(s []StereoSample) iter.Seq[StereoSample] {
	return func(yield func(StereoSample) bool) {
		for _, v := range s {
			if !yield(v) {
				return
			}
		}
	}
}
