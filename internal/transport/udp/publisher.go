// SPDX-License-Identifier: MIT
//
// Package udp publishes the latest spectrum as fixed-layout datagrams at a
// steady rate, for renderers that cannot speak WebSocket.
package udp

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"spectrogram/internal/fourier"
	applog "spectrogram/internal/log"
	"spectrogram/internal/observe"
	"spectrogram/internal/scale"
)

const (
	DefaultInterval = 16 * time.Millisecond

	headerSize = 4 + 8 + 4 + 2
	rowSize    = 4 + 4
)

// MaxRows keeps a packet under the usual 64 KiB datagram limit.
const MaxRows = (65507 - headerSize) / rowSize

var transportAttr = metric.WithAttributes(attribute.String("transport", "udp"))

// LatestSource supplies the spectrum to publish. A nil result skips the tick.
type LatestSource interface {
	Latest() *fourier.Spectrum
}

// PublisherOptions configures a UDPPublisher.
type PublisherOptions struct {
	Interval     time.Duration
	Axis         scale.LogAxis
	MinDB, MaxDB float32
	Metrics      *observe.Metrics
}

/*
Packet layout, big endian:

	| seq uint32 | ts int64 (unix ns) | sample rate float32 | rows uint16 | rows × (left float32, right float32) |

Levels are normalized to [0, 1]. Row 0 is the highest frequency.
*/

// UDPPublisher periodically renders the source's latest spectrum onto a log
// axis and sends it with a UDPSender. Start and Stop may be called repeatedly.
type UDPPublisher struct {
	sender *UDPSender
	source LatestSource
	opts   PublisherOptions

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup

	seq     uint32
	last    *fourier.Spectrum
	column  []scale.Level
	packet  []byte
	nowFunc func() time.Time
}

// NewUDPPublisher validates its inputs. A non-positive interval defaults to
// DefaultInterval.
func NewUDPPublisher(sender *UDPSender, source LatestSource, opts PublisherOptions) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("UDPPublisher: spectrum source cannot be nil")
	}
	if opts.Axis.Rows <= 0 || opts.Axis.Rows > MaxRows {
		return nil, errors.New("UDPPublisher: row count out of range")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", opts.Interval)
	}
	applog.Infof("UDPPublisher: Initializing (interval %s, %d rows)", opts.Interval, opts.Axis.Rows)

	return &UDPPublisher{
		sender:  sender,
		source:  source,
		opts:    opts,
		column:  make([]scale.Level, opts.Axis.Rows),
		packet:  make([]byte, 0, headerSize+rowSize*opts.Axis.Rows),
		nowFunc: time.Now,
	}, nil
}

// Start launches the publishing goroutine. It is a no-op when running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.running = true
	p.done = make(chan struct{})
	done := p.done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Stopped after %d packets", p.seq)
	return nil
}

// Close stops publishing and closes the sender.
func (p *UDPPublisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

// publish sends one packet if a new spectrum is available.
func (p *UDPPublisher) publish() {
	s := p.source.Latest()
	if s == nil || s == p.last {
		return
	}
	p.last = s

	p.seq++
	p.packet = p.appendPacket(p.packet[:0], s)
	err := p.sender.Send(p.packet)
	if m := p.opts.Metrics; m != nil {
		p.count(m, err == nil)
	}
}

func (p *UDPPublisher) count(m *observe.Metrics, sent bool) {
	if sent {
		m.FramesSent.Add(context.Background(), 1, transportAttr)
	} else {
		m.FramesDropped.Add(context.Background(), 1, transportAttr)
	}
}

func (p *UDPPublisher) appendPacket(b []byte, fs fourier.FrequencySample) []byte {
	p.column = scale.Column(fs, p.opts.Axis, p.opts.MinDB, p.opts.MaxDB, p.column)

	b = binary.BigEndian.AppendUint32(b, p.seq)
	b = binary.BigEndian.AppendUint64(b, uint64(p.nowFunc().UnixNano()))
	b = binary.BigEndian.AppendUint32(b, math.Float32bits(float32(fs.SampleRate())))
	b = binary.BigEndian.AppendUint16(b, uint16(len(p.column)))
	for _, l := range p.column {
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(l.Left))
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(l.Right))
	}
	return b
}

// Packet is a decoded datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	SampleRate float32
	Rows       []scale.Level
}

var ErrShortPacket = errors.New("udp: short packet")

// DecodePacket parses a datagram produced by UDPPublisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	var pk Packet
	pk.Sequence = binary.BigEndian.Uint32(b[0:])
	pk.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(b[4:])))
	pk.SampleRate = math.Float32frombits(binary.BigEndian.Uint32(b[12:]))
	n := int(binary.BigEndian.Uint16(b[16:]))
	b = b[headerSize:]
	if len(b) < n*rowSize {
		return Packet{}, ErrShortPacket
	}
	pk.Rows = make([]scale.Level, n)
	for i := range pk.Rows {
		pk.Rows[i].Left = math.Float32frombits(binary.BigEndian.Uint32(b[i*rowSize:]))
		pk.Rows[i].Right = math.Float32frombits(binary.BigEndian.Uint32(b[i*rowSize+4:]))
	}
	return pk, nil
}
