// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "spectrogram/internal/log"
)

// PortAudioCapturer reads float32 frames from a PortAudio input stream.
// PortAudio must be initialized for the capturer's lifetime.
type PortAudioCapturer struct {
	device     *portaudio.DeviceInfo
	latency    time.Duration
	sampleRate float64
	channels   int
	frames     int

	mu       sync.Mutex
	stream   *portaudio.Stream
	producer *SampleProducer
}

var _ Capturer = (*PortAudioCapturer)(nil)

// NewPortAudioCapturer resolves the input device and its stream format.
func NewPortAudioCapturer(cfg CaptureConfig) (*PortAudioCapturer, error) {
	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	c := &PortAudioCapturer{
		device:     device,
		sampleRate: cfg.SampleRate,
		channels:   deviceFromInfo(cfg.DeviceID, device).InputChannels(cfg.Channels),
		frames:     cfg.FramesPerBuffer,
	}
	if c.sampleRate <= 0 {
		c.sampleRate = device.DefaultSampleRate
	}
	if cfg.LowLatency {
		c.latency = device.DefaultLowInputLatency
	} else {
		c.latency = device.DefaultHighInputLatency
	}
	return c, nil
}

// SampleRate is the stream's sample rate in Hz.
func (c *PortAudioCapturer) SampleRate() float64 { return c.sampleRate }

// Channels is the number of channels the stream delivers.
func (c *PortAudioCapturer) Channels() int { return c.channels }

// DeviceName is the name of the input device.
func (c *PortAudioCapturer) DeviceName() string { return c.device.Name }

// Start opens the input stream and feeds p from its callback.
func (c *PortAudioCapturer) Start(_ context.Context, p *SampleProducer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return ErrAlreadyRunning
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: c.channels,
			Device:   c.device,
			Latency:  c.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: c.frames,
		SampleRate:      c.sampleRate,
	}

	c.producer = p
	stream, err := portaudio.OpenStream(params, c.processInputStream)
	if err != nil {
		return fmt.Errorf("open input stream on %q: %w", c.device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream on %q: %w", c.device.Name, err)
	}
	c.stream = stream

	applog.Infof("Capture: PortAudio %q, %d ch @ %.0f Hz, latency %v",
		c.device.Name, c.channels, c.sampleRate, c.latency)
	return nil
}

// Stop stops and closes the stream. After Stop returns the callback no
// longer touches the producer.
func (c *PortAudioCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	c.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// processInputStream is the real-time callback. It only pushes.
func (c *PortAudioCapturer) processInputStream(in []float32) {
	Ingest(c.producer, in, c.channels)
}
