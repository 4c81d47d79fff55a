// SPDX-License-Identifier: MIT
//
// Package utils holds deterministic signal generators and small helpers
// shared by tests across the module.
package utils

import (
	"math"
	"sync"
)

// MockTransport records everything sent through it instead of transmitting.
// It satisfies transport.Transport.
type MockTransport struct {
	// Err, when set, is returned by Send after recording the data.
	Err error

	mu     sync.Mutex
	frames []any
	closed bool
}

// Send stores data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.frames = append(m.frames, data)
	m.mu.Unlock()
	return m.Err
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Frames returns a copy of everything sent so far.
func (m *MockTransport) Frames() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.frames))
	copy(out, m.frames)
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440 Hz tone with its second and third
// harmonics, peaking at 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// Interleave zips two channels into L R L R order. The shorter channel
// determines the frame count.
func Interleave(left, right []float32) []float32 {
	n := min(len(left), len(right))
	out := make([]float32, 2*n)
	for i := range n {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], clamping the bounds to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
