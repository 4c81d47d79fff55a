// SPDX-License-Identifier: MIT
package analysis

import (
	"spectrogram/internal/fourier"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string  `json:"name" msgpack:"name" yaml:"name"`
	LowHz  float64 `json:"low_hz" msgpack:"low_hz" yaml:"low_hz"`
	HighHz float64 `json:"high_hz" msgpack:"high_hz" yaml:"high_hz"`
}

// DefaultBands splits the audible range the usual way, sub bass to treble.
// The last band is open ended and is cut at Nyquist when measured.
func DefaultBands() []FrequencyBand {
	return []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: 20000},
	}
}

// BandEnergy measures the mean magnitude of a spectrum over fixed bands.
type BandEnergy struct {
	bands []FrequencyBand
}

// NewBandEnergy copies bands; a nil slice selects DefaultBands.
func NewBandEnergy(bands []FrequencyBand) *BandEnergy {
	if bands == nil {
		bands = DefaultBands()
	}
	return &BandEnergy{bands: append([]FrequencyBand(nil), bands...)}
}

// Bands returns a copy of the configured bands.
func (b *BandEnergy) Bands() []FrequencyBand {
	return append([]FrequencyBand(nil), b.bands...)
}

// Measure writes one stereo level per band into dst, growing it if needed,
// and returns it. Bands above Nyquist read as zero.
func (b *BandEnergy) Measure(fs fourier.FrequencySample, dst []fourier.StereoMagnitude) []fourier.StereoMagnitude {
	if cap(dst) < len(b.bands) {
		dst = make([]fourier.StereoMagnitude, len(b.bands))
	}
	dst = dst[:len(b.bands)]

	nyquist := fs.Frequencies().End
	for i, band := range b.bands {
		lo, hi := band.LowHz, min(band.HighHz, nyquist)
		if lo >= hi {
			dst[i] = 0
			continue
		}
		dst[i] = fs.MagnitudeIn(fourier.FrequencyRange{Start: lo, End: hi})
	}
	return dst
}

// Map returns band name to mono level, the shape sent to remote renderers.
func (b *BandEnergy) Map(fs fourier.FrequencySample) map[string]float32 {
	levels := b.Measure(fs, nil)
	out := make(map[string]float32, len(levels))
	for i, band := range b.bands {
		out[band.Name] = levels[i].Mono()
	}
	return out
}
