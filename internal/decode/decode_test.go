// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes data, interleaved, as an integer PCM WAV file.
func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("wav encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("wav close: %v", err)
	}
}

func TestOpen_WAV16Stereo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	data := make([]int, 2*1000)
	for i := range 1000 {
		data[2*i] = 16384   // left: 0.5
		data[2*i+1] = -8192 // right: -0.25
	}
	writeWAV(t, path, 22050, 16, 2, data)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 22050 || src.Channels() != 2 {
		t.Fatalf("format = %d Hz x%d, want 22050 Hz x2", src.SampleRate(), src.Channels())
	}
	samples, err := ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(samples) != len(data) {
		t.Fatalf("read %d samples, want %d", len(samples), len(data))
	}
	for i := 0; i < len(samples); i += 2 {
		if samples[i] != 0.5 || samples[i+1] != -0.25 {
			t.Fatalf("frame %d = (%v, %v), want (0.5, -0.25)", i/2, samples[i], samples[i+1])
		}
	}
}

func TestOpen_WAV8IsUnsigned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "eight.WAV")
	writeWAV(t, path, 8000, 8, 1, []int{128, 192, 64})

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	samples, err := ReadAll(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0, 0.5, -0.5}
	if !slices.Equal(samples, want) {
		t.Errorf("samples = %v, want %v", samples, want)
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "noise.wav")
	if err := os.WriteFile(garbage, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"unknown extension", filepath.Join(dir, "song.flac"), ErrUnknownFormat},
		{"invalid content", garbage, ErrInvalidFile},
		{"missing file", filepath.Join(dir, "missing.wav"), os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	called := false
	r.Register(DecoderFunc(func(rs io.ReadSeeker) (Source, error) {
		called = true
		return nil, errors.New("stub")
	}), ".RAW", "pcm")

	if got := r.Formats(); !slices.Equal(got, []string{"pcm", "raw"}) {
		t.Errorf("Formats() = %v", got)
	}
	d, ok := r.Get("raw")
	if !ok {
		t.Fatal("Get(raw) not found")
	}
	if _, err := d.Decode(nil); err == nil || !called {
		t.Error("registered decoder was not used")
	}

	if got := Default.Formats(); !slices.Contains(got, "mp3") || !slices.Contains(got, "ogg") ||
		!slices.Contains(got, "aiff") || !slices.Contains(got, "wav") {
		t.Errorf("Default.Formats() = %v", got)
	}
}

type chunkSource struct {
	chunks [][]float32
}

func (c *chunkSource) SampleRate() int { return 8000 }
func (c *chunkSource) Channels() int   { return 1 }
func (c *chunkSource) Close() error    { return nil }
func (c *chunkSource) ReadSamples(dst []float32) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(dst, c.chunks[0])
	c.chunks = c.chunks[1:]
	if len(c.chunks) == 0 {
		return n, io.EOF
	}
	return n, nil
}

func TestReadAll_KeepsFinalPartialRead(t *testing.T) {
	t.Parallel()

	src := &chunkSource{chunks: [][]float32{{1, 2}, {3}}}
	got, err := ReadAll(src)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []float32{1, 2, 3}) {
		t.Errorf("ReadAll() = %v", got)
	}
}
