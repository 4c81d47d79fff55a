// SPDX-License-Identifier: MIT
//
// Package scale maps spectra onto display coordinates: a logarithmic
// frequency axis and a bounded decibel level per cell.
package scale

import (
	"errors"
	"math"

	"spectrogram/internal/fourier"
)

// Display defaults.
const (
	DefaultMinHz = 32.0
	DefaultMaxHz = 22030.0
)

// ErrInvalidAxis is returned for a non-positive row count or a frequency
// range that cannot be drawn on a log scale.
var ErrInvalidAxis = errors.New("scale: invalid frequency axis")

// LogAxis splits [MinHz, MaxHz] into Rows bands of equal width in log
// frequency. Row 0 is the top of the display and ends at MaxHz.
type LogAxis struct {
	MinHz float64
	MaxHz float64
	Rows  int
}

// NewLogAxis validates and returns an axis.
func NewLogAxis(minHz, maxHz float64, rows int) (LogAxis, error) {
	if rows <= 0 || !(minHz > 0) || !(maxHz > minHz) || math.IsInf(maxHz, 0) {
		return LogAxis{}, ErrInvalidAxis
	}
	return LogAxis{MinHz: minHz, MaxHz: maxHz, Rows: rows}, nil
}

// Frequency returns the frequency at a fractional position y in [0, 1],
// where 0 is MinHz and 1 is MaxHz.
func (a LogAxis) Frequency(y float64) float64 {
	lo, hi := math.Log(a.MinHz), math.Log(a.MaxHz)
	return math.Exp(lo + y*(hi-lo))
}

// Range returns the band covered by row. Rows outside [0, Rows) are clamped.
func (a LogAxis) Range(row int) fourier.FrequencyRange {
	row = min(max(row, 0), a.Rows-1)
	bottom := a.Rows - 1 - row
	return fourier.FrequencyRange{
		Start: a.Frequency(float64(bottom) / float64(a.Rows)),
		End:   a.Frequency(float64(bottom+1) / float64(a.Rows)),
	}
}

// Row returns the row a frequency falls in, clamped to the axis.
func (a LogAxis) Row(frequency float64) int {
	if !(frequency > a.MinHz) {
		return a.Rows - 1
	}
	if frequency >= a.MaxHz {
		return 0
	}
	y := math.Log(frequency/a.MinHz) / math.Log(a.MaxHz/a.MinHz)
	bottom := min(int(y*float64(a.Rows)), a.Rows-1)
	return a.Rows - 1 - bottom
}
