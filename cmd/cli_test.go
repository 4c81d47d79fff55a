// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"spectrogram/internal/analysis"
	"spectrogram/pkg/utils"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTone(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tone := utils.GenerateSineWave(8000, 8000, 440, 0.5)
	data := make([]int, len(tone))
	for i, v := range tone {
		data[i] = int(v * 32767)
	}
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "spectrogram") {
		t.Errorf("version output = %q", out)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	path := writeTone(t)
	out, err := run(t, "analyze", path, "-o", "json", "--period", "0.1", "--stride", "0.1", "--bands")
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// (8000 - 800) / 800 + 1 windows.
	if len(lines) != 10 {
		t.Fatalf("got %d reports:\n%s", len(lines), out)
	}
	var r analysis.Report
	if err := json.Unmarshal([]byte(lines[3]), &r); err != nil {
		t.Fatal(err)
	}
	if r.Index != 3 || r.PeakHz < 430 || r.PeakHz > 450 {
		t.Errorf("report = %+v, want a peak near 440 Hz", r)
	}
	if r.Bands["lowMid"] <= r.Bands["treble"] {
		t.Errorf("bands = %v", r.Bands)
	}
}

func TestAnalyzeText(t *testing.T) {
	path := writeTone(t)
	out, err := run(t, "analyze", path, "--period", "0.1", "--stride", "0.1", "--every", "5")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "WINDOW") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if !strings.HasPrefix(lines[2], "5 ") {
		t.Errorf("second row should be window 5: %q", lines[2])
	}
}

func TestAnalyzeErrors(t *testing.T) {
	if _, err := run(t, "analyze", "missing.wav"); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := run(t, "analyze", writeTone(t), "-o", "xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("bad format error = %v", err)
	}
	if _, err := run(t, "analyze", writeTone(t), "--window", "kaiser"); err == nil {
		t.Error("unknown window accepted")
	}
	if _, err := run(t, "analyze"); err == nil {
		t.Error("missing argument accepted")
	}
}

func TestListFileBackend(t *testing.T) {
	if _, err := run(t, "list", "--backend", "file"); err == nil {
		t.Error("listing the file backend should fail")
	}
}

func TestLoadConfigInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		want    time.Duration
		wantErr bool
	}{
		{name: "default", args: nil, want: 16 * time.Millisecond},
		{name: "flag", args: []string{"--interval", "40ms"}, want: 40 * time.Millisecond},
		{name: "zero", args: []string{"--interval", "0s"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, opts := newRootCommand()
			if err := root.ParseFlags(append([]string{"--config", path}, tt.args...)); err != nil {
				t.Fatal(err)
			}
			cfg, closer, err := loadConfig(root, opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer closer.Close()
			if cfg.Analysis.TickInterval != tt.want {
				t.Errorf("TickInterval = %v, want %v", cfg.Analysis.TickInterval, tt.want)
			}
		})
	}
}
