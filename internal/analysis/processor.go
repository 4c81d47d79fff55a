// SPDX-License-Identifier: MIT
package analysis

import "spectrogram/internal/fourier"

// SpectrumSink receives each spectrum a Pipeline produces. Consume runs on the
// pipeline goroutine and should hand work off rather than block.
type SpectrumSink interface {
	Consume(s *fourier.Spectrum) error
}

// ClosableSink combines SpectrumSink with a Close method for resource cleanup.
type ClosableSink interface {
	SpectrumSink
	Close() error
}

// SinkFunc adapts a plain function to SpectrumSink.
type SinkFunc func(s *fourier.Spectrum) error

// Consume calls f(s).
func (f SinkFunc) Consume(s *fourier.Spectrum) error { return f(s) }
