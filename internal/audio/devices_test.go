// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// These tests replace package-level hooks and must not run in parallel.

var fakeDevices = []*portaudio.DeviceInfo{
	{
		Index:                   0,
		Name:                    "Built-in Microphone",
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 20 * time.Millisecond,
		HostApi:                 &portaudio.HostApiInfo{Name: "Core Audio"},
	},
	{
		Index:             1,
		Name:              "Built-in Output",
		MaxOutputChannels: 2,
		DefaultSampleRate: 44100,
	},
	{
		Index:             2,
		Name:              "USB Interface",
		MaxInputChannels:  8,
		MaxOutputChannels: 8,
		DefaultSampleRate: 96000,
	},
}

func withFakePortAudio(t *testing.T) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return fakeDevices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return fakeDevices[0], nil }
}

func TestHostDevices(t *testing.T) {
	withFakePortAudio(t)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != fakeDevices[i].Name {
			t.Errorf("Device %d name = %q", i, d.Name)
		}
	}
	if !devices[0].Default || devices[2].Default {
		t.Error("only device 0 should be marked default")
	}
	if devices[0].HostAPI != "Core Audio" {
		t.Errorf("HostAPI = %q", devices[0].HostAPI)
	}
	if got := []string{devices[0].Kind(), devices[1].Kind(), devices[2].Kind()}; got[0] != "Input" || got[1] != "Output" || got[2] != "Input/Output" {
		t.Errorf("kinds = %v", got)
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakePortAudio(t)

	if dev, err := InputDevice(DefaultDeviceID); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("InputDevice(default) = %v, %v", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "USB Interface" {
		t.Errorf("InputDevice(2) = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeDevices) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakePortAudio(t)
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}

	_, err := InputDevice(DefaultDeviceID)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, nil
	}

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
	if len(devices) != 0 {
		t.Errorf("expected length 0, got %d", len(devices))
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	withFakePortAudio(t)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input) [default]",
		"[1] Built-in Output (Output)",
		"Default sample rate: 96000 Hz",
		"Latency: Low=5.00ms, High=20.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewPortAudioCapturer_ResolvesFormat(t *testing.T) {
	withFakePortAudio(t)

	tests := []struct {
		name         string
		cfg          CaptureConfig
		wantRate     float64
		wantChannels int
		wantLatency  time.Duration
	}{
		{"device default rate", CaptureConfig{DeviceID: DefaultDeviceID, Channels: 2}, 48000, 2, 20 * time.Millisecond},
		{"explicit rate, low latency", CaptureConfig{DeviceID: 0, SampleRate: 44100, Channels: 2, LowLatency: true}, 44100, 2, 5 * time.Millisecond},
		{"channels capped at stereo", CaptureConfig{DeviceID: 2, Channels: 8}, 96000, 2, 0},
		{"mono request", CaptureConfig{DeviceID: 2, Channels: 1}, 96000, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewPortAudioCapturer(tt.cfg)
			if err != nil {
				t.Fatalf("NewPortAudioCapturer error: %v", err)
			}
			if c.SampleRate() != tt.wantRate || c.Channels() != tt.wantChannels || c.latency != tt.wantLatency {
				t.Errorf("got %v Hz x%d latency %v, want %v Hz x%d latency %v",
					c.SampleRate(), c.Channels(), c.latency, tt.wantRate, tt.wantChannels, tt.wantLatency)
			}
		})
	}

	if _, err := NewPortAudioCapturer(CaptureConfig{DeviceID: 1}); err == nil {
		t.Error("output-only device should be rejected")
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendPortAudio, false},
		{"PortAudio", BackendPortAudio, false},
		{"malgo", BackendMalgo, false},
		{"miniaudio", BackendMalgo, false},
		{" file ", BackendFile, false},
		{"alsa", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, %v", tt.in, got, err)
		}
	}
}
