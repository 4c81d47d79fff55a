// SPDX-License-Identifier: MIT
package fourier

import "math"

// StereoSample is one instant of stereo audio.
type StereoSample struct {
	Left  float32
	Right float32
}

// Mono builds a StereoSample that carries v on both channels.
func Mono(v float32) StereoSample {
	return StereoSample{Left: v, Right: v}
}

// StereoMagnitude holds a per-channel magnitude pair. The real part is the
// left channel and the imaginary part is the right channel, so sums and
// scaling reuse complex arithmetic.
type StereoMagnitude complex64

// NewStereoMagnitude packs a left/right magnitude pair.
func NewStereoMagnitude(left, right float32) StereoMagnitude {
	return StereoMagnitude(complex(left, right))
}

// Left returns the left-channel magnitude.
func (m StereoMagnitude) Left() float32 { return real(m) }

// Right returns the right-channel magnitude.
func (m StereoMagnitude) Right() float32 { return imag(m) }

// Add returns the channel-wise sum of m and o.
func (m StereoMagnitude) Add(o StereoMagnitude) StereoMagnitude { return m + o }

// Scale multiplies both channels by f.
func (m StereoMagnitude) Scale(f float32) StereoMagnitude {
	return StereoMagnitude(complex(real(m)*f, imag(m)*f))
}

// Norm is the Euclidean length of the pair.
func (m StereoMagnitude) Norm() float32 {
	return float32(math.Hypot(float64(real(m)), float64(imag(m))))
}

// Mono averages the two channels.
func (m StereoMagnitude) Mono() float32 {
	return (real(m) + imag(m)) / 2
}
