// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// capture redirects output to a buffer for the duration of the test.
func capture(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Error("shown ", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered messages: %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="shown 3"`) {
		t.Errorf("missing warn record: %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("missing error record: %q", out)
	}
}

func TestFatalExits(t *testing.T) {
	buf := capture(t, LevelError)
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = orig })

	Fatalf("boom %s", "now")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "level=FATAL") {
		t.Errorf("fatal record not labelled: %q", buf.String())
	}
}

func TestConfigure_File(t *testing.T) {
	prev := GetLevel()
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})

	path := filepath.Join(t.TempDir(), "spectrogram.log")
	closer, err := Configure(Options{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("Configure error: %v", err)
	}
	Debugf("Pipeline: %d spectra", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "Pipeline: 7 spectra") {
		t.Errorf("log file missing record: %q", data)
	}
	if GetLevel() != LevelDebug {
		t.Errorf("GetLevel() = %v, want DEBUG", GetLevel())
	}
}

func TestConfigure_BadLevel(t *testing.T) {
	if _, err := Configure(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
