// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultDeviceID selects the host's default input device.
const DefaultDeviceID = -1

// Backend names a capture implementation.
type Backend string

const (
	BackendPortAudio Backend = "portaudio"
	BackendMalgo     Backend = "malgo"
	BackendFile      Backend = "file"
)

// ErrAlreadyRunning is returned by Start on a capturer that is running.
var ErrAlreadyRunning = errors.New("audio: capturer already running")

// ParseBackend accepts the backend names used in config and flags.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BackendPortAudio:
		return BackendPortAudio, nil
	case BackendMalgo, "miniaudio":
		return BackendMalgo, nil
	case BackendFile:
		return BackendFile, nil
	default:
		return "", fmt.Errorf("audio: unknown backend %q", s)
	}
}

// CaptureConfig describes the input stream to open.
type CaptureConfig struct {
	DeviceID        int     // Index into HostDevices, or DefaultDeviceID.
	SampleRate      float64 // Zero uses the device default.
	Channels        int     // 1 or 2; mono is duplicated to stereo.
	FramesPerBuffer int
	LowLatency      bool

	// File and Realtime apply to the file backend only.
	File     string
	Realtime bool
}

// Capturer delivers audio into a sample ring. SampleRate is known before
// Start so the pipeline can be sized for it.
//
// Start must not be called again until Stop has returned; to switch rings,
// Stop the capturer and Start it with the new producer. Only one producer is
// ever written to at a time.
type Capturer interface {
	Start(ctx context.Context, p *SampleProducer) error
	Stop() error
	SampleRate() float64
	Channels() int
}
