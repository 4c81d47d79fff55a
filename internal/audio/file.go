// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"spectrogram/internal/decode"
	applog "spectrogram/internal/log"
)

// fileBackoff is how long the fast path waits for the consumer to make room.
const fileBackoff = time.Millisecond

// FileCapturer streams a decoded audio file into the ring, either paced at
// the file's own sample rate or as fast as the consumer drains it.
type FileCapturer struct {
	path     string
	src      decode.Source
	frames   int
	realtime bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

var _ Capturer = (*FileCapturer)(nil)

// NewFileCapturer opens cfg.File with the default decoder registry.
func NewFileCapturer(cfg CaptureConfig) (*FileCapturer, error) {
	src, err := decode.Open(cfg.File)
	if err != nil {
		return nil, err
	}
	return newFileCapturer(cfg, src), nil
}

func newFileCapturer(cfg CaptureConfig, src decode.Source) *FileCapturer {
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 1024
	}
	return &FileCapturer{
		path:     cfg.File,
		src:      src,
		frames:   frames,
		realtime: cfg.Realtime,
	}
}

// SampleRate is the file's sample rate in Hz.
func (f *FileCapturer) SampleRate() float64 { return float64(f.src.SampleRate()) }

// Channels is the file's channel count.
func (f *FileCapturer) Channels() int { return f.src.Channels() }

// Start streams the file into p on a new goroutine.
func (f *FileCapturer) Start(ctx context.Context, p *SampleProducer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return ErrAlreadyRunning
	}
	if f.src.Channels() <= 0 {
		return fmt.Errorf("audio: %s has no channels", f.path)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(ctx, p, f.done)

	applog.Infof("Capture: file %s, %d ch @ %d Hz", f.path, f.src.Channels(), f.src.SampleRate())
	return nil
}

// Done is closed when the file has been fully delivered or streaming stopped.
// It is nil before Start.
func (f *FileCapturer) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Err returns the error that ended streaming, if any.
func (f *FileCapturer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Stop ends streaming and waits for the goroutine to exit. The file stays
// open so the capturer can be restarted on a new ring; Close releases it.
func (f *FileCapturer) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Close stops streaming and closes the decoder.
func (f *FileCapturer) Close() error {
	return errors.Join(f.Stop(), f.src.Close())
}

func (f *FileCapturer) run(ctx context.Context, p *SampleProducer, done chan struct{}) {
	defer close(done)

	channels := f.src.Channels()
	buf := make([]float32, f.frames*channels)
	period := time.Duration(float64(time.Second) * float64(f.frames) / float64(f.src.SampleRate()))

	var ticker *time.Ticker
	if f.realtime {
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	rem := 0
	for {
		read, err := f.src.ReadSamples(buf[rem:])
		n := rem + read
		whole := n - n%channels
		if whole > 0 {
			if !f.deliver(ctx, p, buf[:whole], channels, ticker) {
				return
			}
		}
		// Samples of a frame split across reads lead the next read.
		rem = copy(buf, buf[whole:n])
		if errors.Is(err, io.EOF) {
			applog.Infof("Capture: reached end of %s", f.path)
			return
		}
		if err != nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			applog.Errorf("Capture: reading %s: %v", f.path, err)
			return
		}
		if read == 0 {
			return
		}
	}
}

// deliver pushes one chunk. Paced mode waits for the next tick and accepts
// drops like a live device; fast mode waits for room instead.
func (f *FileCapturer) deliver(ctx context.Context, p *SampleProducer, chunk []float32, channels int, ticker *time.Ticker) bool {
	if ticker != nil {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		Ingest(p, chunk, channels)
		return true
	}

	frames := min(len(chunk)/channels, p.Capacity())
	for p.Free() < frames {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(fileBackoff):
		}
	}
	if ctx.Err() != nil {
		return false
	}
	Ingest(p, chunk, channels)
	return true
}
