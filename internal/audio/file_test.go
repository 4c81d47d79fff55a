// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"spectrogram/internal/fourier"
)

// memSource serves interleaved samples from memory.
type memSource struct {
	data     []float32
	rate     int
	channels int
	failAt   int // fail once this many values were served; 0 disables
	readSize int // cap on values per read; 0 fills dst
	closed   bool
}

func (m *memSource) SampleRate() int { return m.rate }
func (m *memSource) Channels() int   { return m.channels }
func (m *memSource) Close() error    { m.closed = true; return nil }

func (m *memSource) ReadSamples(dst []float32) (int, error) {
	if m.failAt > 0 && len(m.data) <= m.failAt {
		return 0, errors.New("corrupt frame")
	}
	if m.readSize > 0 && len(dst) > m.readSize {
		dst = dst[:m.readSize]
	}
	n := copy(dst, m.data)
	m.data = m.data[n:]
	if len(m.data) == 0 {
		return n, io.EOF
	}
	return n, nil
}

func waitDone(t *testing.T, f *FileCapturer) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("file capture did not finish")
	}
}

func TestFileCapturer_FastModeDeliversEverything(t *testing.T) {
	t.Parallel()

	data := make([]float32, 2*3000)
	for i := range 3000 {
		data[2*i] = float32(i)
		data[2*i+1] = -float32(i)
	}
	src := &memSource{data: data, rate: 8000, channels: 2}
	f := newFileCapturer(CaptureConfig{FramesPerBuffer: 256}, src)
	if f.SampleRate() != 8000 || f.Channels() != 2 {
		t.Fatalf("format = %v x%d", f.SampleRate(), f.Channels())
	}

	// The ring is smaller than the file; the consumer keeps up.
	p, c := newRing(t, 1024)
	if err := f.Start(context.Background(), p); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.Start(context.Background(), p); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	var got []fourier.StereoSample
	deadline := time.After(5 * time.Second)
	for len(got) < 3000 {
		got = append(got, drain(c)...)
		select {
		case <-deadline:
			t.Fatalf("received %d of 3000 frames", len(got))
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
	waitDone(t, f)

	for i, s := range got {
		if s.Left != float32(i) || s.Right != -float32(i) {
			t.Fatalf("frame %d = %+v, out of order or corrupted", i, s)
		}
	}
	if p.Dropped() != 0 {
		t.Errorf("fast mode dropped %d frames", p.Dropped())
	}
	if err := f.Close(); err != nil || !src.closed {
		t.Errorf("Close() = %v, source closed %v", err, src.closed)
	}
}

func TestFileCapturer_ReadsSplitAcrossFrames(t *testing.T) {
	t.Parallel()

	for _, readSize := range []int{1, 3, 255, 1001} {
		data := make([]float32, 2*2000)
		for i := range 2000 {
			data[2*i] = float32(i)
			data[2*i+1] = -float32(i)
		}
		src := &memSource{data: data, rate: 8000, channels: 2, readSize: readSize}
		f := newFileCapturer(CaptureConfig{FramesPerBuffer: 256}, src)

		p, c := newRing(t, 4096)
		if err := f.Start(context.Background(), p); err != nil {
			t.Fatal(err)
		}
		waitDone(t, f)

		got := drain(c)
		if len(got) != 2000 {
			t.Fatalf("readSize %d: delivered %d of 2000 frames", readSize, len(got))
		}
		for i, s := range got {
			if s.Left != float32(i) || s.Right != -float32(i) {
				t.Fatalf("readSize %d: frame %d = %+v, want {%d %d}", readSize, i, s, i, -i)
			}
		}
	}
}

func TestFileCapturer_StopCancelsPacedStream(t *testing.T) {
	t.Parallel()

	src := &memSource{data: make([]float32, 8000*10), rate: 8000, channels: 1}
	f := newFileCapturer(CaptureConfig{FramesPerBuffer: 800, Realtime: true}, src)

	p, _ := newRing(t, 16384)
	if err := f.Start(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	done := f.Done()

	if err := f.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("Stop() returned before the stream goroutine exited")
	}
	if err := f.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	// Restarting on a fresh ring resumes where the file left off.
	p2, _ := newRing(t, 16384)
	if err := f.Start(context.Background(), p2); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	f.Stop()
}

func TestFileCapturer_ReadErrorIsReported(t *testing.T) {
	t.Parallel()

	src := &memSource{data: make([]float32, 4000), rate: 8000, channels: 1, failAt: 2000}
	f := newFileCapturer(CaptureConfig{FramesPerBuffer: 1000}, src)

	p, _ := newRing(t, 8192)
	if err := f.Start(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	waitDone(t, f)

	if err := f.Err(); err == nil || err.Error() != "corrupt frame" {
		t.Errorf("Err() = %v, want corrupt frame", err)
	}
	if p.Free() != 8192-2000 {
		t.Errorf("delivered %d frames before the error, want 2000", 8192-p.Free())
	}
}
