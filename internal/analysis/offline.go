// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"io"

	"spectrogram/internal/fourier"
	"spectrogram/internal/ringbuf"
	"spectrogram/pkg/bitint"
	"spectrogram/pkg/utils"
)

const offlineChunkFrames = 4096

// SampleReader is a finite interleaved audio source, such as a decoded file.
type SampleReader interface {
	SampleRate() int
	Channels() int
	ReadSamples(dst []float32) (int, error)
}

// Report summarises one spectrum of an offline run.
type Report struct {
	Index     int                `json:"index" yaml:"index"`
	Time      float64            `json:"time" yaml:"time"` // Window start, seconds.
	PeakHz    float64            `json:"peak_hz" yaml:"peak_hz"`
	PeakLevel float32            `json:"peak_level" yaml:"peak_level"` // Mono magnitude.
	Bands     map[string]float32 `json:"bands,omitempty" yaml:"bands,omitempty"`
}

// Summarize builds the Report of spectrum number index. The DC bin is never
// reported as the peak. bands may be nil.
func Summarize(s *fourier.Spectrum, index, strideSamples int, bands *BandEnergy) Report {
	mags := make([]float64, s.NumBins())
	for k := range mags {
		mags[k] = float64(s.Bin(k).Mono())
	}
	peak := utils.FindPeakBin(mags, 1, len(mags)-1)
	r := Report{
		Index:     index,
		Time:      float64(index*strideSamples) / s.SampleRate(),
		PeakHz:    float64(peak) / s.Period(),
		PeakLevel: float32(mags[peak]),
	}
	if bands != nil {
		r.Bands = bands.Map(s)
	}
	return r
}

// Offline runs the transform over all of src at its own sample rate, calling
// fn with each report in order. cfg.SampleRate and the buffering fields are
// ignored. fn may stop the run by returning an error, which Offline returns.
func Offline(src SampleReader, cfg PipelineConfig, bands *BandEnergy, fn func(Report) error) error {
	channels := src.Channels()
	if channels <= 0 {
		return fmt.Errorf("analysis: source has %d channels", channels)
	}
	transform, err := fourier.NewTransform(float64(src.SampleRate()), cfg.WindowPeriod,
		fourier.WithWindow(cfg.Window), fourier.WithInterpolator(cfg.Interpolator))
	if err != nil {
		return err
	}

	// After each drain fewer than N samples remain, so one more chunk always fits.
	capacity := bitint.NextPowerOfTwo(transform.NumInputSamples() + offlineChunkFrames)
	producer, consumer, err := ringbuf.New[fourier.StereoSample](capacity)
	if err != nil {
		return err
	}
	stream, err := NewStreamTransform(consumer, transform, cfg.StrideSeconds)
	if err != nil {
		return err
	}

	index := 0
	drain := func() error {
		for s := range stream.Spectra() {
			if err := fn(Summarize(s, index, stream.StrideSamples(), bands)); err != nil {
				return err
			}
			index++
		}
		return nil
	}

	// A read may end partway through a frame; rem samples carry over.
	buf := make([]float32, offlineChunkFrames*channels)
	rem := 0
	for {
		read, rerr := src.ReadSamples(buf[rem:])
		n := rem + read
		whole := n - n%channels
		for i := 0; i < whole; i += channels {
			s := fourier.Mono(buf[i])
			if channels > 1 {
				s.Right = buf[i+1]
			}
			producer.Push(s)
		}
		rem = copy(buf, buf[whole:n])
		if err := drain(); err != nil {
			return err
		}
		switch {
		case errors.Is(rerr, io.EOF):
			return nil
		case rerr != nil:
			return rerr
		case read == 0:
			return nil
		}
	}
}
