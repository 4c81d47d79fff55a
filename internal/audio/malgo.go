// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	applog "spectrogram/internal/log"
)

// malgoDefaultRate is used when neither the config nor the device names a
// rate, since miniaudio only reports the native rate once a device is open.
const malgoDefaultRate = 48000

// MalgoCapturer captures through miniaudio. It is the fallback for hosts
// without PortAudio.
type MalgoCapturer struct {
	cfg        CaptureConfig
	sampleRate float64
	channels   int

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	producer *SampleProducer
	scratch  []float32 // callback-owned
	stop     chan struct{}
	done     chan struct{}
}

var _ Capturer = (*MalgoCapturer)(nil)

// NewMalgoCapturer creates a new malgo-based audio capturer.
func NewMalgoCapturer(cfg CaptureConfig) (*MalgoCapturer, error) {
	channels := cfg.Channels
	if channels != 1 {
		channels = 2
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = malgoDefaultRate
	}
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 1024
	}
	return &MalgoCapturer{
		cfg:        cfg,
		sampleRate: rate,
		channels:   channels,
		// miniaudio may deliver larger periods than requested; the callback
		// grows this once if it has to.
		scratch: make([]float32, 4*frames*channels),
	}, nil
}

// SampleRate is the stream's sample rate in Hz.
func (m *MalgoCapturer) SampleRate() float64 { return m.sampleRate }

// Channels is the number of channels the stream delivers.
func (m *MalgoCapturer) Channels() int { return m.channels }

// Start begins audio capture into p. Cancelling ctx stops the device.
func (m *MalgoCapturer) Start(ctx context.Context, p *SampleProducer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return ErrAlreadyRunning
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(max(m.cfg.FramesPerBuffer, 0))

	// Keep infos alive until InitDevice has copied the ID.
	var infos []malgo.DeviceInfo
	if m.cfg.DeviceID != DefaultDeviceID {
		infos, err = malgoCtx.Devices(malgo.Capture)
		if err != nil {
			freeContext(malgoCtx)
			return fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		if m.cfg.DeviceID < 0 || m.cfg.DeviceID >= len(infos) {
			freeContext(malgoCtx)
			return fmt.Errorf("invalid device ID: %d", m.cfg.DeviceID)
		}
		deviceConfig.Capture.DeviceID = infos[m.cfg.DeviceID].ID.Pointer()
	}

	m.producer = p
	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onData,
	})
	if err != nil {
		freeContext(malgoCtx)
		return fmt.Errorf("failed to initialize device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(malgoCtx)
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.ctx = malgoCtx
	m.device = device
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.watch(ctx, m.stop, m.done)

	applog.Infof("Capture: miniaudio device %d, %d ch @ %.0f Hz", m.cfg.DeviceID, m.channels, m.sampleRate)
	return nil
}

func (m *MalgoCapturer) watch(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	select {
	case <-ctx.Done():
		if err := m.shutdown(); err != nil {
			applog.Warnf("Capture: stopping miniaudio device: %v", err)
		}
	case <-stop:
	}
}

// Stop stops the device and releases the miniaudio context.
func (m *MalgoCapturer) Stop() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.mu.Unlock()
	if stop == nil {
		return nil
	}
	err := m.shutdown()
	<-done
	return err
}

func (m *MalgoCapturer) shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}

	err := m.device.Stop()
	m.device.Uninit()
	freeContext(m.ctx)
	m.device, m.ctx = nil, nil

	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	return err
}

// onData decodes little-endian float32 frames and pushes them.
func (m *MalgoCapturer) onData(_, in []byte, frames uint32) {
	n := min(int(frames)*m.channels, len(in)/4)
	if n > len(m.scratch) {
		m.scratch = make([]float32, n)
	}
	buf := m.scratch[:n]
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[4*i:]))
	}
	Ingest(m.producer, buf, m.channels)
}

func freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Uninit()
	ctx.Free()
}

// MalgoDevices lists the capture devices miniaudio can see.
func MalgoDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i := range infos {
		devices[i] = Device{
			ID:               i,
			Name:             infos[i].Name(),
			HostAPI:          "miniaudio",
			MaxInputChannels: 2, // miniaudio does not report a channel limit
			Default:          infos[i].IsDefault > 0,
		}
	}
	return devices, nil
}
