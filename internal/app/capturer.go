// SPDX-License-Identifier: MIT
package app

import (
	"spectrogram/internal/audio"
)

// CapturerFactory opens a capturer for a backend.
type CapturerFactory func(backend audio.Backend, cfg audio.CaptureConfig) (audio.Capturer, error)

// NewCapturer is the default CapturerFactory.
func NewCapturer(backend audio.Backend, cfg audio.CaptureConfig) (audio.Capturer, error) {
	switch backend {
	case audio.BackendMalgo:
		c, err := audio.NewMalgoCapturer(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case audio.BackendFile:
		c, err := audio.NewFileCapturer(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		c, err := audio.NewPortAudioCapturer(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Devices lists the input devices of backend. The file backend has none.
// PortAudio must be initialized.
func Devices(backend audio.Backend) ([]audio.Device, error) {
	var (
		all []audio.Device
		err error
	)
	switch backend {
	case audio.BackendFile:
		return nil, nil
	case audio.BackendMalgo:
		all, err = audio.MalgoDevices()
	default:
		all, err = audio.HostDevices()
	}
	if err != nil {
		return nil, err
	}
	inputs := all[:0]
	for _, d := range all {
		if d.IsInput() {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}
