// SPDX-License-Identifier: MIT
package fourier

import (
	"fmt"
	"math"
	"strings"
)

// Interpolator evaluates bins at a fractional index. index is already
// clamped to [0, len(bins)-1] by the caller.
type Interpolator func(bins []StereoMagnitude, index float64) StereoMagnitude

// ParseInterpolator maps "cubic" (the default) and "cosine" to their
// Interpolator.
func ParseInterpolator(name string) (Interpolator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cubic", "":
		return CubicInterpolate, nil
	case "cosine":
		return CosineInterpolate, nil
	default:
		return CubicInterpolate, fmt.Errorf("%w: %q", ErrUnknownInterp, name)
	}
}

// CubicInterpolate applies a Catmull-Rom cubic Hermite spline over the four
// bins around index. Neighbours past either end are clamped to the edge bin,
// and negative overshoot is clamped to zero.
func CubicInterpolate(bins []StereoMagnitude, index float64) StereoMagnitude {
	i, mu := split(bins, index)
	last := len(bins) - 1

	y0 := bins[max(i-1, 0)]
	y1 := bins[i]
	y2 := bins[min(i+1, last)]
	y3 := bins[min(i+2, last)]

	left := catmullRom(float64(y0.Left()), float64(y1.Left()), float64(y2.Left()), float64(y3.Left()), mu)
	right := catmullRom(float64(y0.Right()), float64(y1.Right()), float64(y2.Right()), float64(y3.Right()), mu)
	return NewStereoMagnitude(float32(max(left, 0)), float32(max(right, 0)))
}

// CosineInterpolate eases between the two bins bracketing index using a half
// cosine.
func CosineInterpolate(bins []StereoMagnitude, index float64) StereoMagnitude {
	i, mu := split(bins, index)
	lo := bins[i]
	hi := bins[min(i+1, len(bins)-1)]

	w := float32((1 - math.Cos(mu*math.Pi)) / 2)
	return lo.Scale(1 - w).Add(hi.Scale(w))
}

func catmullRom(y0, y1, y2, y3, mu float64) float64 {
	mu2 := mu * mu
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return a0*mu*mu2 + a1*mu2 + a2*mu + a3
}

// split returns the integer bin at or below index and the fractional offset.
func split(bins []StereoMagnitude, index float64) (int, float64) {
	fl := math.Floor(index)
	i := int(fl)
	if i >= len(bins)-1 {
		return len(bins) - 1, 0
	}
	return i, index - fl
}
