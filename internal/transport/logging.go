// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "spectrogram/internal/log"
)

// LoggingTransport implements the Transport interface by logging a summary of
// each frame at debug level. It is meant for headless debugging.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	if f, ok := data.(Frame); ok {
		peakRow, peak := 0, float32(0)
		for i, l := range f.Rows {
			if m := l.Mono(); m > peak {
				peakRow, peak = i, m
			}
		}
		applog.Debugf("LOG_TRANSPORT: frame %d, %d rows, peak row %d level %.2f, bands %v",
			f.Sequence, len(f.Rows), peakRow, peak, f.Bands)
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: message %d (%T): %+v", n, data, data)
	return nil
}

// Sent returns how many messages were logged.
func (lt *LoggingTransport) Sent() uint64 { return lt.sent.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Infof("LOG_TRANSPORT: Close called after %d messages.", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
