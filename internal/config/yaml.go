// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "spectrogram/internal/log"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn or error.
	Log       LogConfig       `yaml:"log"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig routes log output to a rotated file. An empty File keeps stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // portaudio, malgo or file.
	InputDevice     int     `yaml:"input_device"`      // Device index, -1 for the default.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz. 0 uses the device default.
	InputChannels   int     `yaml:"input_channels"`    // 1 or 2.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency"`
	BufferSeconds   float64 `yaml:"buffer_seconds"` // Ring capacity in seconds of audio.
	File            string  `yaml:"file"`           // Input for the file backend.
	Realtime        bool    `yaml:"realtime"`       // Pace file playback at the sample rate.
}

// AnalysisConfig holds transform and display settings.
type AnalysisConfig struct {
	WindowPeriod  float64       `yaml:"window_period"` // Seconds of audio per transform.
	Stride        float64       `yaml:"stride"`        // Seconds between transforms.
	Window        string        `yaml:"window"`
	Interpolation string        `yaml:"interpolation"`
	Rows          int           `yaml:"rows"`
	MinHz         float64       `yaml:"min_hz"`
	MaxHz         float64       `yaml:"max_hz"`
	MinDB         float64       `yaml:"min_db"`
	MaxDB         float64       `yaml:"max_db"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	MaxPerTick    int           `yaml:"max_per_tick"` // 0 means unbounded.
}

// TransportConfig holds settings for publishing spectra.
type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
	UDP       UDPConfig       `yaml:"udp"`
	Log       bool            `yaml:"log"` // Log a summary of each frame at debug level.
}

type WebSocketConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Encoding string `yaml:"encoding"` // json or msgpack.
}

type UDPConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Target   string        `yaml:"target"` // host:port
	Interval time.Duration `yaml:"interval"`
}

// MetricsConfig controls the Prometheus endpoint. It is served on the
// WebSocket server when that is enabled, otherwise on Addr.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// candidates are searched in order when LoadConfig gets an empty path.
func candidates() []string {
	paths := []string{"config.yaml", "spectrogram.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "spectrogram", "config.yaml"))
	}
	return paths
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches the default locations and falls back to the built-in
// defaults. Environment overrides are applied last, then the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, c := range candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid value")

func invalid(field string, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", field, ErrInvalid, fmt.Sprintf(format, args...))
}

func oneOf(s string, names []string) bool {
	return slices.Contains(names, strings.ToLower(strings.TrimSpace(s)))
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	if c.LogLevel != "" {
		if _, ok := applog.ParseLevel(c.LogLevel); !ok {
			add(invalid("log_level", "unknown level %q", c.LogLevel))
		}
	}

	a := c.Audio
	if a.Backend != "" && !oneOf(a.Backend, backends) {
		add(invalid("audio.backend", "unknown backend %q", a.Backend))
	}
	if oneOf(a.Backend, []string{"file"}) && a.File == "" {
		add(invalid("audio.file", "required by the file backend"))
	}
	if a.InputDevice < MinDeviceID {
		add(invalid("audio.input_device", "%d", a.InputDevice))
	}
	if a.SampleRate != 0 && (a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate) {
		add(invalid("audio.sample_rate", "%g outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if a.InputChannels != 1 && a.InputChannels != 2 {
		add(invalid("audio.input_channels", "%d is not 1 or 2", a.InputChannels))
	}
	if a.FramesPerBuffer < 0 || a.FramesPerBuffer > MaxBufferFrames {
		add(invalid("audio.frames_per_buffer", "%d outside [0, %d]", a.FramesPerBuffer, MaxBufferFrames))
	}
	if a.BufferSeconds <= 0 {
		add(invalid("audio.buffer_seconds", "must be positive"))
	}

	an := c.Analysis
	if an.WindowPeriod <= 0 {
		add(invalid("analysis.window_period", "must be positive"))
	}
	if an.Stride <= 0 {
		add(invalid("analysis.stride", "must be positive"))
	}
	if an.Window != "" && !oneOf(an.Window, windows) {
		add(invalid("analysis.window", "unknown window %q", an.Window))
	}
	if an.Interpolation != "" && !oneOf(an.Interpolation, interpolations) {
		add(invalid("analysis.interpolation", "unknown interpolation %q", an.Interpolation))
	}
	if an.Rows <= 0 {
		add(invalid("analysis.rows", "must be positive"))
	}
	if an.MinHz <= 0 || an.MaxHz <= an.MinHz {
		add(invalid("analysis.min_hz", "need 0 < min_hz < max_hz, got %g and %g", an.MinHz, an.MaxHz))
	}
	if an.MaxDB <= an.MinDB {
		add(invalid("analysis.min_db", "need min_db < max_db, got %g and %g", an.MinDB, an.MaxDB))
	}
	if an.TickInterval <= 0 {
		add(invalid("analysis.tick_interval", "must be positive"))
	}
	if an.MaxPerTick < 0 {
		add(invalid("analysis.max_per_tick", "must not be negative"))
	}

	t := c.Transport
	if t.WebSocket.Enabled {
		if t.WebSocket.Addr == "" {
			add(invalid("transport.websocket.addr", "required when enabled"))
		}
		if t.WebSocket.Encoding != "" && !oneOf(t.WebSocket.Encoding, encodings) {
			add(invalid("transport.websocket.encoding", "unknown encoding %q", t.WebSocket.Encoding))
		}
	}
	if t.UDP.Enabled {
		if !strings.Contains(t.UDP.Target, ":") {
			add(invalid("transport.udp.target", "%q is missing a port", t.UDP.Target))
		}
		if t.UDP.Interval <= 0 {
			add(invalid("transport.udp.interval", "must be positive"))
		}
	}
	if c.Metrics.Enabled && !t.WebSocket.Enabled && c.Metrics.Addr == "" {
		add(invalid("metrics.addr", "required when the websocket server is disabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
			applog.Infof("Config: Overriding from %s: %s", name, v)
		}
	}
	parsed := func(name string, parse func(string) error) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		if err := parse(v); err != nil {
			applog.Warnf("Config: Ignoring %s=%q: %v", name, v, err)
			return
		}
		applog.Infof("Config: Overriding from %s: %s", name, v)
	}
	boolean := func(name string, dst *bool) {
		parsed(name, func(v string) (err error) { *dst, err = strconv.ParseBool(v); return })
	}
	integer := func(name string, dst *int) {
		parsed(name, func(v string) (err error) { *dst, err = strconv.Atoi(v); return })
	}
	float := func(name string, dst *float64) {
		parsed(name, func(v string) (err error) { *dst, err = strconv.ParseFloat(v, 64); return })
	}
	duration := func(name string, dst *time.Duration) {
		parsed(name, func(v string) (err error) { *dst, err = time.ParseDuration(v); return })
	}

	str("ENV_LOG_LEVEL", &c.LogLevel)
	str("ENV_LOG_FILE", &c.Log.File)

	str("ENV_AUDIO_BACKEND", &c.Audio.Backend)
	integer("ENV_AUDIO_INPUT_DEVICE", &c.Audio.InputDevice)
	float("ENV_AUDIO_SAMPLE_RATE", &c.Audio.SampleRate)
	str("ENV_AUDIO_FILE", &c.Audio.File)

	float("ENV_ANALYSIS_WINDOW_PERIOD", &c.Analysis.WindowPeriod)
	float("ENV_ANALYSIS_STRIDE", &c.Analysis.Stride)
	str("ENV_ANALYSIS_WINDOW", &c.Analysis.Window)

	boolean("ENV_WS_ENABLED", &c.Transport.WebSocket.Enabled)
	str("ENV_WS_ADDR", &c.Transport.WebSocket.Addr)
	str("ENV_WS_ENCODING", &c.Transport.WebSocket.Encoding)

	boolean("ENV_UDP_ENABLED", &c.Transport.UDP.Enabled)
	str("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDP.Target)
	duration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDP.Interval)

	boolean("ENV_METRICS_ENABLED", &c.Metrics.Enabled)
	str("ENV_METRICS_ADDR", &c.Metrics.Addr)
}
