// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SpectraProduced.Add(ctx, 3)
	m.SpectraProduced.Add(ctx, 2)
	m.SinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", "websocket")))
	m.Clients.Add(ctx, 2)
	m.Clients.Add(ctx, -1)
	m.TickDuration.Record(ctx, 0.002)

	got := collect(t, reader)

	if v := sumInt64(t, got["spectrogram.spectra.produced"]); v != 5 {
		t.Errorf("spectra.produced = %d, want 5", v)
	}
	if v := sumInt64(t, got["spectrogram.sink.errors"]); v != 1 {
		t.Errorf("sink.errors = %d, want 1", v)
	}
	if v := sumInt64(t, got["spectrogram.websocket.clients"]); v != 1 {
		t.Errorf("websocket.clients = %d, want 1", v)
	}

	hist, ok := got["spectrogram.tick.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("tick.duration data is %T", got["spectrogram.tick.duration"].Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("tick.duration datapoints = %+v, want one observation", hist.DataPoints)
	}
}

func TestMetrics_ObserveRing(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	reg, err := m.ObserveRing(func() RingStats {
		return RingStats{Buffered: 100, Capacity: 4096, Dropped: 7}
	})
	if err != nil {
		t.Fatalf("ObserveRing() error = %v", err)
	}
	defer reg.Unregister()

	got := collect(t, reader)

	gauge, ok := got["spectrogram.ring.buffered"].Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 100 {
		t.Errorf("ring.buffered = %+v, want 100", got["spectrogram.ring.buffered"].Data)
	}
	if v := sumInt64(t, got["spectrogram.ring.dropped"]); v != 7 {
		t.Errorf("ring.dropped = %d, want 7", v)
	}
}

func TestInitProvider_ServesPrometheus(t *testing.T) {
	p, err := InitProvider()
	if err != nil {
		t.Fatalf("InitProvider() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.DeviceSwitches.Add(context.Background(), 1)

	rec := httptest.NewRecorder()
	p.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "spectrogram_device_switches") {
		t.Errorf("metrics output missing device switches counter:\n%s", body)
	}
}
