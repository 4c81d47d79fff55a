// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"spectrogram/internal/fourier"
	applog "spectrogram/internal/log"
	"spectrogram/internal/observe"
	"spectrogram/internal/ringbuf"
	"spectrogram/pkg/bitint"
)

// PipelineConfig holds the analysis parameters. Changing any of them means
// building a new transform, which Reconfigure does.
type PipelineConfig struct {
	SampleRate    float64
	WindowPeriod  float64 // Seconds of audio per window.
	StrideSeconds float64 // Hop between windows.
	Window        fourier.WindowFunc
	Interpolator  fourier.Interpolator // Nil selects cubic.

	// BufferSeconds sizes the ring. It is rounded up to a power of two and
	// never smaller than one window.
	BufferSeconds float64

	// MaxPerTick bounds the spectra drained per Tick; zero means no bound.
	MaxPerTick int
}

// DefaultPipelineConfig matches the live display defaults at 44.1 kHz.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SampleRate:    44100,
		WindowPeriod:  0.0464,
		StrideSeconds: 128.0 / 44100.0,
		Window:        fourier.Hann,
		BufferSeconds: 1,
	}
}

type namedSink struct {
	name string
	sink SpectrumSink
}

// Pipeline owns the consumer side of the capture ring: the ring consumer, the
// transform and the stream driver. All of it is touched only under mu, which
// the capture callback never takes; the callback only sees the Producer.
type Pipeline struct {
	mu       sync.Mutex
	cfg      PipelineConfig
	consumer *ringbuf.Consumer[fourier.StereoSample]
	stream   *StreamTransform
	sinks    []namedSink

	// droppedBase accumulates drops from rings retired by Reconfigure.
	droppedBase uint64

	latest  atomic.Pointer[fourier.Spectrum]
	metrics *observe.Metrics
}

// NewPipeline validates cfg and builds the first ring. The returned Producer
// belongs to the capture side. metrics may be nil.
func NewPipeline(cfg PipelineConfig, metrics *observe.Metrics) (*Pipeline, *ringbuf.Producer[fourier.StereoSample], error) {
	p := &Pipeline{metrics: metrics}
	producer, err := p.build(cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, producer, nil
}

// build constructs a ring, transform and driver for cfg and swaps them in.
// Callers other than NewPipeline hold mu.
func (p *Pipeline) build(cfg PipelineConfig) (*ringbuf.Producer[fourier.StereoSample], error) {
	opts := []fourier.Option{fourier.WithWindow(cfg.Window)}
	if cfg.Interpolator != nil {
		opts = append(opts, fourier.WithInterpolator(cfg.Interpolator))
	}
	transform, err := fourier.NewTransform(cfg.SampleRate, cfg.WindowPeriod, opts...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	capacity := transform.NumInputSamples()
	if cfg.BufferSeconds > 0 && !math.IsInf(cfg.BufferSeconds, 0) {
		capacity = max(capacity, int(math.Ceil(cfg.BufferSeconds*cfg.SampleRate)))
	}
	producer, consumer, err := ringbuf.New[fourier.StereoSample](bitint.NextPowerOfTwo(capacity))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	stream, err := NewStreamTransform(consumer, transform, cfg.StrideSeconds)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	if p.consumer != nil {
		p.droppedBase += p.consumer.Dropped()
	}
	p.cfg = cfg
	p.consumer = consumer
	p.stream = stream
	p.latest.Store(nil)

	applog.Infof("Pipeline: window %d samples (%s), stride %d, %d bins, ring %d @ %.0f Hz",
		transform.NumInputSamples(), cfg.Window, stream.StrideSamples(),
		transform.NumFrequencies(), consumer.Capacity(), cfg.SampleRate)
	return producer, nil
}

// AddSink registers a sink under name. Sinks run in registration order.
func (p *Pipeline) AddSink(name string, s SpectrumSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, namedSink{name: name, sink: s})
}

// Config returns the active configuration.
func (p *Pipeline) Config() PipelineConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Latest returns the most recent spectrum, or nil before the first one. It is
// safe to call from any goroutine.
func (p *Pipeline) Latest() *fourier.Spectrum { return p.latest.Load() }

// Stats reports the state of the active ring.
func (p *Pipeline) Stats() observe.RingStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return observe.RingStats{
		Buffered: int64(p.consumer.Len()),
		Capacity: int64(p.consumer.Capacity()),
		Dropped:  p.droppedBase + p.consumer.Dropped(),
	}
}

// Tick drains the spectra that are ready, hands each to every sink and
// returns how many were produced. Sink errors are logged and counted; they do
// not stop the tick.
func (p *Pipeline) Tick(ctx context.Context) int {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	spectra := p.stream.ProcessN(p.cfg.MaxPerTick)
	for _, s := range spectra {
		for _, ns := range p.sinks {
			if err := ns.sink.Consume(s); err != nil {
				applog.Warnf("Pipeline: sink %s: %v", ns.name, err)
				if p.metrics != nil {
					p.metrics.SinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", ns.name)))
				}
			}
		}
	}
	if n := len(spectra); n > 0 {
		p.latest.Store(spectra[n-1])
	}

	if p.metrics != nil {
		p.metrics.SpectraProduced.Add(ctx, int64(len(spectra)))
		p.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
	}
	return len(spectra)
}

// Run calls Tick every interval until ctx is done.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("pipeline: tick interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Reconfigure discards the current ring and transform and builds new ones for
// sampleRate, keeping the other parameters. The caller must stop the old
// capture stream first and hand the returned Producer to the new one, so
// that no two producers ever feed the same ring.
func (p *Pipeline) Reconfigure(ctx context.Context, sampleRate float64) (*ringbuf.Producer[fourier.StereoSample], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := p.cfg
	cfg.SampleRate = sampleRate
	producer, err := p.build(cfg)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.DeviceSwitches.Add(ctx, 1)
	}
	return producer, nil
}

// Close closes every sink that holds resources.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, ns := range p.sinks {
		if c, ok := ns.sink.(ClosableSink); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("sink %s: %w", ns.name, err))
			}
		}
	}
	p.sinks = nil
	return errors.Join(errs...)
}
