// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"spectrogram/internal/audio"
	"spectrogram/internal/fourier"
	"spectrogram/internal/scale"
)

type staticSource struct{ s *fourier.Spectrum }

func (f staticSource) Latest() *fourier.Spectrum { return f.s }

type fakeSwitcher struct {
	mu      sync.Mutex
	devices []audio.Device
	err     error
	calls   []DeviceSelectedMsg
}

func (f *fakeSwitcher) Devices() ([]audio.Device, error) { return f.devices, nil }

func (f *fakeSwitcher) SwitchDevice(_ context.Context, id int, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, DeviceSelectedMsg{Device: audio.Device{ID: id}, SampleRate: rate})
	return f.err
}

func loudSpectrum() *fourier.Spectrum {
	bins := make([]fourier.StereoMagnitude, 1025)
	for i := range bins {
		bins[i] = fourier.NewStereoMagnitude(30, 0.001)
	}
	return fourier.NewSpectrum(bins, 44100, nil)
}

func testOptions(t *testing.T) Options {
	t.Helper()
	axis, err := scale.NewLogAxis(scale.DefaultMinHz, scale.DefaultMaxHz, 8)
	if err != nil {
		t.Fatal(err)
	}
	return Options{Axis: axis, MinDB: scale.DefaultMinDB, MaxDB: scale.DefaultMaxDB}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (SpectrumModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	sm, ok := next.(SpectrumModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return sm, cmd
}

func TestSpectrumModelRefresh(t *testing.T) {
	t.Parallel()

	m := NewSpectrumModel(staticSource{loudSpectrum()}, testOptions(t))
	if !strings.Contains(m.View(), "waiting for audio") {
		t.Error("empty view should say it is waiting")
	}

	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	for i, l := range m.levels {
		if l < 0.9 {
			t.Errorf("bar %d = %v, want near full", i, l)
		}
	}
	view := m.View()
	if !strings.Contains(view, "44100 Hz") || !strings.Contains(view, "█") {
		t.Errorf("view missing summary or bars:\n%s", view)
	}
}

func TestSpectrumModelKeys(t *testing.T) {
	t.Parallel()

	m := NewSpectrumModel(staticSource{loudSpectrum()}, testOptions(t))

	m, _ = update(t, m, keyMsg(" "))
	if !m.paused {
		t.Fatal("space should pause")
	}
	m, _ = update(t, m, tickMsg(time.Now()))
	if m.last != nil {
		t.Error("paused view should not refresh")
	}

	m, _ = update(t, m, keyMsg("m"))
	if m.mode != stereoMode {
		t.Error("m should switch to stereo mode")
	}
	if !strings.Contains(m.View(), "│") {
		t.Error("stereo view should draw the channel divider")
	}

	m, _ = update(t, m, keyMsg("d"))
	if m.picker != nil || !strings.Contains(m.status, "not available") {
		t.Error("picker must not open without a switcher")
	}

	_, cmd := update(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.QuitMsg")
	}
}

type swapSource struct{ s *fourier.Spectrum }

func (f *swapSource) Latest() *fourier.Spectrum { return f.s }

func TestSpectrumModelHistory(t *testing.T) {
	t.Parallel()

	src := &swapSource{s: loudSpectrum()}
	m := NewSpectrumModel(src, testOptions(t))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 24})
	if got := m.history.Width(); got != 11 {
		t.Fatalf("history width = %d, want 11", got)
	}

	m, _ = update(t, m, tickMsg(time.Now()))
	m, _ = update(t, m, tickMsg(time.Now()))
	if got := m.history.Len(); got != 1 {
		t.Errorf("history len = %d after an unchanged spectrum, want 1", got)
	}
	src.s = loudSpectrum()
	m, _ = update(t, m, tickMsg(time.Now()))
	if got := m.history.Len(); got != 2 {
		t.Errorf("history len = %d, want 2", got)
	}

	m, _ = update(t, m, keyMsg("m"))
	m, _ = update(t, m, keyMsg("m"))
	if m.mode != historyMode {
		t.Fatalf("mode = %v, want history", m.mode)
	}
	view := m.View()
	if !strings.Contains(view, "history") || !strings.Contains(view, "██") {
		t.Errorf("history view should show two full columns:\n%s", view)
	}

	m, _ = update(t, m, keyMsg("m"))
	if m.mode != barsMode {
		t.Errorf("mode = %v, want bars after cycling", m.mode)
	}
}

func TestShadeAndPan(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		level float32
		want  string
	}{{-1, " "}, {0, " "}, {0.5, "▒"}, {1, "█"}, {2, "█"}} {
		if got := shade(tt.level); got != tt.want {
			t.Errorf("shade(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
	if panStyle(1).GetForeground() != panStyles[0].GetForeground() {
		t.Error("fully left should use the first pan colour")
	}
	if panStyle(0).GetForeground() != panStyles[len(panStyles)-1].GetForeground() {
		t.Error("fully right should use the last pan colour")
	}
}

func TestSpectrumModelDeviceSwitch(t *testing.T) {
	t.Parallel()

	sw := &fakeSwitcher{devices: []audio.Device{
		{ID: 0, Name: "Built-in Mic", MaxInputChannels: 2, DefaultSampleRate: 48000, Default: true},
		{ID: 3, Name: "USB Interface", MaxInputChannels: 2, DefaultSampleRate: 96000},
	}}
	opts := testOptions(t)
	opts.Switcher = sw
	m := NewSpectrumModel(staticSource{loudSpectrum()}, opts)

	m, cmd := update(t, m, keyMsg("d"))
	if m.picker == nil || cmd == nil {
		t.Fatal("d should open the picker and load devices")
	}
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.View(), "Built-in Mic") {
		t.Fatalf("picker should list devices:\n%s", m.View())
	}

	m, _ = update(t, m, keyMsg("down"))
	m, _ = update(t, m, keyMsg("enter"))
	if !strings.Contains(m.View(), "96000 Hz (device default)") {
		t.Fatalf("config screen should preselect the default rate:\n%s", m.View())
	}

	m, cmd = update(t, m, keyMsg("enter"))
	if cmd == nil {
		t.Fatal("choosing a rate should emit a selection")
	}
	sel, ok := cmd().(DeviceSelectedMsg)
	if !ok || sel.Device.ID != 3 || sel.SampleRate != 96000 {
		t.Fatalf("selection = %+v", sel)
	}

	m, cmd = update(t, m, sel)
	if m.picker != nil {
		t.Error("picker should close after a selection")
	}
	m, _ = update(t, m, cmd())
	if len(sw.calls) != 1 || sw.calls[0].Device.ID != 3 {
		t.Errorf("switch calls = %+v", sw.calls)
	}
	if !strings.Contains(m.status, "USB Interface") {
		t.Errorf("status = %q", m.status)
	}

	sw.err = errors.New("device busy")
	m, _ = update(t, m, switchedMsg{device: sel.Device, err: sw.err})
	if !strings.Contains(m.status, "device busy") {
		t.Errorf("status = %q", m.status)
	}
}

func TestDevicePickerClose(t *testing.T) {
	t.Parallel()

	p := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	next, _ := p.Update(p.Init()())
	if !strings.Contains(next.View(), "no host") {
		t.Errorf("view should show the error:\n%s", next.View())
	}
	_, cmd := next.Update(keyMsg("x"))
	if _, ok := cmd().(PickerClosedMsg); !ok {
		t.Error("any key should close the picker after an error")
	}
}

func TestSampleRatesFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def     float64
		want    []float64
		wantIdx int
	}{
		{48000, []float64{44100, 48000, 88200, 96000}, 1},
		{22050, []float64{22050, 44100, 48000, 88200, 96000}, 0},
		{0, []float64{44100, 48000, 88200, 96000}, 0},
	}
	for _, tt := range tests {
		rates, idx := sampleRatesFor(audio.Device{DefaultSampleRate: tt.def})
		if len(rates) != len(tt.want) || idx != tt.wantIdx {
			t.Errorf("sampleRatesFor(%v) = %v, %d", tt.def, rates, idx)
			continue
		}
		for i := range rates {
			if rates[i] != tt.want[i] {
				t.Errorf("sampleRatesFor(%v) = %v", tt.def, rates)
				break
			}
		}
	}
}

func TestBar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level float32
		width int
		want  string
	}{
		{0, 10, ""},
		{1, 4, "████"},
		{0.5, 4, "██"},
		{0.5625, 2, "█▏"},
		{2, 3, "███"},
		{-1, 3, ""},
	}
	for _, tt := range tests {
		if got := bar(tt.level, tt.width); got != tt.want {
			t.Errorf("bar(%v, %d) = %q, want %q", tt.level, tt.width, got, tt.want)
		}
	}
	if got := visibleRows(10, 4); len(got) != 4 || got[0] != 0 || got[3] != 7 {
		t.Errorf("visibleRows(10, 4) = %v", got)
	}
}
