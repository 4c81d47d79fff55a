// SPDX-License-Identifier: MIT
package scale

import (
	"math"

	"spectrogram/internal/fourier"
)

// Level bounds in dB for a full-scale display.
const (
	DefaultMinDB = -70.0
	DefaultMaxDB = 32.0
)

const epsilon = 1e-7

// ToDecibels converts a linear magnitude to 20·log10(m + ε).
func ToDecibels(m float32) float32 {
	return float32(20 * math.Log10(float64(m)+epsilon))
}

// Normalize maps db into [0, 1] against the given bounds.
func Normalize(db, minDB, maxDB float32) float32 {
	if maxDB <= minDB {
		return 0
	}
	v := (db - minDB) / (maxDB - minDB)
	return min(max(v, 0), 1)
}

// Level is the normalised stereo level of one display cell.
type Level struct {
	Left  float32 `json:"l" msgpack:"l"`
	Right float32 `json:"r" msgpack:"r"`
}

// Mono returns the louder of the two channels.
func (l Level) Mono() float32 { return max(l.Left, l.Right) }

// Balance returns the left share of the total level in [0, 1]; 0.5 is
// centred. A silent cell reads as centred.
func (l Level) Balance() float32 {
	total := l.Left + l.Right
	if total <= 0 {
		return 0.5
	}
	return l.Left / total
}

// LevelOf converts a stereo magnitude to display levels.
func LevelOf(m fourier.StereoMagnitude, minDB, maxDB float32) Level {
	return Level{
		Left:  Normalize(ToDecibels(m.Left()), minDB, maxDB),
		Right: Normalize(ToDecibels(m.Right()), minDB, maxDB),
	}
}

// Column fills one display column: dst[row] is the level of axis.Range(row).
// dst is grown if it is too short and returned.
func Column(fs fourier.FrequencySample, axis LogAxis, minDB, maxDB float32, dst []Level) []Level {
	if cap(dst) < axis.Rows {
		dst = make([]Level, axis.Rows)
	}
	dst = dst[:axis.Rows]
	for row := range dst {
		dst[row] = LevelOf(fs.MagnitudeIn(axis.Range(row)), minDB, maxDB)
	}
	return dst
}

// Bars is a bar-graph analyser: one bar per axis row, each decaying slowly
// from its last peak instead of dropping at once.
type Bars struct {
	axis         LogAxis
	minDB, maxDB float32
	decay        float32
	levels       []float32
	scratch      []Level
}

// NewBars returns a bar set with every bar at zero. decay is the fraction of
// the previous level kept per update; 0.99 gives a slow fall.
func NewBars(axis LogAxis, minDB, maxDB, decay float32) *Bars {
	return &Bars{
		axis:   axis,
		minDB:  minDB,
		maxDB:  maxDB,
		decay:  min(max(decay, 0), 1),
		levels: make([]float32, axis.Rows),
	}
}

// Update folds a new spectrum into the bars and returns the levels, ordered
// like the axis rows. The slice is reused by the next call.
func (b *Bars) Update(fs fourier.FrequencySample) []float32 {
	b.scratch = Column(fs, b.axis, b.minDB, b.maxDB, b.scratch)
	for i, l := range b.scratch {
		b.levels[i] = max(l.Mono(), b.levels[i]*b.decay)
	}
	return b.levels
}
