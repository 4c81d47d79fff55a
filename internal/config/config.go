// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the analysis engine.
const (
	DefaultLogLevel        = "info"
	DefaultBackend         = "portaudio"
	DefaultDeviceID        = MinDeviceID // System default input.
	DefaultSampleRate      = 44100
	DefaultChannels        = 2
	DefaultFramesPerBuffer = 512
	DefaultBufferSeconds   = 1.0

	DefaultWindow        = "hann"
	DefaultInterpolation = "cubic"
	DefaultWindowPeriod  = 0.0464        // 2046 samples at 44.1 kHz.
	DefaultStride        = 128.0 / 44100 // One spectrum every 128 samples.
	DefaultRows          = 64            // Display rows on the log axis.
	DefaultMinHz         = 32.0          // Bottom of the log axis.
	DefaultMaxHz         = 22030.0       // Top of the log axis.
	DefaultMinDB         = -70.0         // Level mapped to 0.
	DefaultMaxDB         = 32.0          // Level mapped to 1.
	DefaultTickInterval  = 16 * time.Millisecond

	DefaultWebSocketAddr = ":8080"
	DefaultEncoding      = "json"
	DefaultUDPTarget     = "127.0.0.1:9090"
	DefaultUDPInterval   = 33 * time.Millisecond
	DefaultMetricsAddr   = ":9464"

	MinDeviceID     = -1 // -1 represents the system default device.
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
)

var (
	backends       = []string{"portaudio", "malgo", "miniaudio", "file"}
	windows        = []string{"hann", "hanning", "hamming", "blackman", "blackmannuttall", "bartletthann", "nuttall", "lanczos", "rectangular", "none"}
	interpolations = []string{"cubic", "cosine"}
	encodings      = []string{"json", "msgpack", "messagepack"}
)

// Default returns the built-in configuration used before a file or the
// environment is applied.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			InputChannels:   DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			BufferSeconds:   DefaultBufferSeconds,
			Realtime:        true,
		},
		Analysis: AnalysisConfig{
			WindowPeriod:  DefaultWindowPeriod,
			Stride:        DefaultStride,
			Window:        DefaultWindow,
			Interpolation: DefaultInterpolation,
			Rows:          DefaultRows,
			MinHz:         DefaultMinHz,
			MaxHz:         DefaultMaxHz,
			MinDB:         DefaultMinDB,
			MaxDB:         DefaultMaxDB,
			TickInterval:  DefaultTickInterval,
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				Addr:     DefaultWebSocketAddr,
				Encoding: DefaultEncoding,
			},
			UDP: UDPConfig{
				Target:   DefaultUDPTarget,
				Interval: DefaultUDPInterval,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
	}
}
