// SPDX-License-Identifier: MIT
//
// Package observe holds the OpenTelemetry instruments for the analysis
// pipeline and its transports. Production code builds them from the
// Prometheus-backed provider in InitProvider; tests pass a MeterProvider with
// a ManualReader.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "spectrogram"

// Metrics holds all instruments. The fields are safe for concurrent use.
type Metrics struct {
	meter metric.Meter

	// SpectraProduced counts spectra emitted by the stream driver.
	SpectraProduced metric.Int64Counter

	// TickDuration tracks how long one pipeline tick takes, sinks included.
	TickDuration metric.Float64Histogram

	// SinkErrors counts failed sink deliveries. Use with
	// attribute.String("sink", ...).
	SinkErrors metric.Int64Counter

	// FramesSent counts frames handed to a transport. Use with
	// attribute.String("transport", ...).
	FramesSent metric.Int64Counter

	// FramesDropped counts frames a transport discarded because its queue was
	// full.
	FramesDropped metric.Int64Counter

	// Clients tracks connected WebSocket clients.
	Clients metric.Int64UpDownCounter

	// DeviceSwitches counts pipeline reconfigurations.
	DeviceSwitches metric.Int64Counter
}

// tickBuckets are in seconds, sized for ticks of a few milliseconds.
var tickBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{meter: m}
	var err error

	if met.SpectraProduced, err = m.Int64Counter("spectrogram.spectra.produced",
		metric.WithDescription("Spectra emitted by the stream transform."),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("spectrogram.tick.duration",
		metric.WithDescription("Duration of one pipeline tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("spectrogram.sink.errors",
		metric.WithDescription("Failed spectrum deliveries by sink."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64Counter("spectrogram.transport.frames_sent",
		metric.WithDescription("Frames handed to a transport."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("spectrogram.transport.frames_dropped",
		metric.WithDescription("Frames discarded because a transport queue was full."),
	); err != nil {
		return nil, err
	}
	if met.Clients, err = m.Int64UpDownCounter("spectrogram.websocket.clients",
		metric.WithDescription("Connected WebSocket clients."),
	); err != nil {
		return nil, err
	}
	if met.DeviceSwitches, err = m.Int64Counter("spectrogram.device.switches",
		metric.WithDescription("Pipeline reconfigurations after a device change."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RingStats is a point-in-time view of the sample queue.
type RingStats struct {
	Buffered int64  // Unread samples.
	Capacity int64  // Queue capacity.
	Dropped  uint64 // Samples dropped since start, across reconfigurations.
}

// ObserveRing registers asynchronous instruments that read the sample queue
// through stats at collection time.
func (m *Metrics) ObserveRing(stats func() RingStats) (metric.Registration, error) {
	buffered, err := m.meter.Int64ObservableGauge("spectrogram.ring.buffered",
		metric.WithDescription("Unread samples in the capture queue."),
	)
	if err != nil {
		return nil, err
	}
	capacity, err := m.meter.Int64ObservableGauge("spectrogram.ring.capacity",
		metric.WithDescription("Capacity of the capture queue."),
	)
	if err != nil {
		return nil, err
	}
	dropped, err := m.meter.Int64ObservableCounter("spectrogram.ring.dropped",
		metric.WithDescription("Samples dropped because the capture queue was full."),
	)
	if err != nil {
		return nil, err
	}

	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(buffered, s.Buffered)
		o.ObserveInt64(capacity, s.Capacity)
		o.ObserveInt64(dropped, int64(s.Dropped))
		return nil
	}, buffered, capacity, dropped)
}
