// SPDX-License-Identifier: MIT
//
// Package transport publishes spectra to renderers outside the process.
package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"spectrogram/internal/analysis"
	"spectrogram/internal/fourier"
	"spectrogram/internal/scale"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Encoding selects the wire format of a frame.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding accepts "json" (the default) or "msgpack".
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack, "messagepack":
		return EncodingMsgpack, nil
	default:
		return "", fmt.Errorf("transport: unknown encoding %q", s)
	}
}

// Marshal encodes v in e.
func (e Encoding) Marshal(v any) ([]byte, error) {
	if e == EncodingMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Binary reports whether frames in e are sent as binary messages.
func (e Encoding) Binary() bool { return e == EncodingMsgpack }

// Frame is one spectrum rendered onto a log frequency axis, the payload
// remote renderers draw as a display column.
type Frame struct {
	Type       string             `json:"type" msgpack:"type"`
	Sequence   uint64             `json:"seq" msgpack:"seq"`
	Timestamp  int64              `json:"ts" msgpack:"ts"` // Unix nanoseconds.
	SampleRate float64            `json:"sample_rate" msgpack:"sample_rate"`
	MinHz      float64            `json:"min_hz" msgpack:"min_hz"`
	MaxHz      float64            `json:"max_hz" msgpack:"max_hz"`
	Rows       []scale.Level      `json:"rows" msgpack:"rows"` // Row 0 is MaxHz.
	Bands      map[string]float32 `json:"bands,omitempty" msgpack:"bands,omitempty"`
}

// FrameBuilder turns spectra into Frames.
type FrameBuilder struct {
	Axis         scale.LogAxis
	MinDB, MaxDB float32
	Bands        *analysis.BandEnergy // Optional.

	seq atomic.Uint64
	now func() time.Time
}

// NewFrameBuilder returns a builder for axis with the given level bounds.
func NewFrameBuilder(axis scale.LogAxis, minDB, maxDB float32, bands *analysis.BandEnergy) *FrameBuilder {
	return &FrameBuilder{Axis: axis, MinDB: minDB, MaxDB: maxDB, Bands: bands, now: time.Now}
}

// Build renders fs. Each call takes the next sequence number.
func (b *FrameBuilder) Build(fs fourier.FrequencySample) Frame {
	f := Frame{
		Type:       "spectrum",
		Sequence:   b.seq.Add(1),
		Timestamp:  b.now().UnixNano(),
		SampleRate: fs.SampleRate(),
		MinHz:      b.Axis.MinHz,
		MaxHz:      b.Axis.MaxHz,
		Rows:       scale.Column(fs, b.Axis, b.MinDB, b.MaxDB, nil),
	}
	if b.Bands != nil {
		f.Bands = b.Bands.Map(fs)
	}
	return f
}

// Sink feeds a Transport from a pipeline.
type Sink struct {
	transport Transport
	builder   *FrameBuilder
}

var _ analysis.ClosableSink = (*Sink)(nil)

// NewSink returns a pipeline sink that builds a frame per spectrum and sends
// it on t.
func NewSink(t Transport, b *FrameBuilder) *Sink {
	return &Sink{transport: t, builder: b}
}

// Consume builds and sends one frame.
func (s *Sink) Consume(spectrum *fourier.Spectrum) error {
	return s.transport.Send(s.builder.Build(spectrum))
}

// Close closes the underlying transport.
func (s *Sink) Close() error { return s.transport.Close() }
