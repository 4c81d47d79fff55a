// SPDX-License-Identifier: MIT
//
// Package app wires capture, analysis and publishing into one session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"spectrogram/internal/analysis"
	"spectrogram/internal/audio"
	"spectrogram/internal/config"
	"spectrogram/internal/fourier"
	applog "spectrogram/internal/log"
	"spectrogram/internal/observe"
	"spectrogram/internal/scale"
	"spectrogram/internal/transport"
	"spectrogram/internal/transport/udp"
)

const shutdownTimeout = 2 * time.Second

// Options override the session's collaborators. The zero value uses the real
// ones.
type Options struct {
	NewCapturer CapturerFactory
	// ExtraSinks are attached to the pipeline after the configured transports.
	ExtraSinks map[string]analysis.SpectrumSink
}

// Session owns one capture stream feeding one pipeline, plus whatever
// publishes the pipeline's output.
type Session struct {
	cfg         *config.Config
	backend     audio.Backend
	captureCfg  audio.CaptureConfig
	newCapturer CapturerFactory

	pipeline *analysis.Pipeline
	axis     scale.LogAxis
	metrics  *observe.Metrics
	provider *observe.Provider // Nil when metrics are disabled.

	websocket     *transport.WebSocketTransport
	udp           *udp.UDPPublisher
	metricsServer *http.Server
	metricsLn     net.Listener

	mu       sync.Mutex // Guards the capture side below.
	capturer audio.Capturer
	producer *audio.SampleProducer
	runCtx   context.Context // Set while Run is active.

	portaudio bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession opens the configured capture backend and builds everything that
// consumes it. Nothing runs until Run.
func NewSession(cfg *config.Config, opts Options) (s *Session, err error) {
	backend, err := audio.ParseBackend(cfg.Audio.Backend)
	if err != nil {
		return nil, err
	}
	s = &Session{
		cfg:         cfg,
		backend:     backend,
		newCapturer: opts.NewCapturer,
		captureCfg: audio.CaptureConfig{
			DeviceID:        cfg.Audio.InputDevice,
			SampleRate:      cfg.Audio.SampleRate,
			Channels:        cfg.Audio.InputChannels,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
			LowLatency:      cfg.Audio.LowLatency,
			File:            cfg.Audio.File,
			Realtime:        cfg.Audio.Realtime,
		},
	}
	if s.newCapturer == nil {
		s.newCapturer = NewCapturer
	}
	defer func() {
		if err != nil {
			s.Close()
			s = nil
		}
	}()

	if backend == audio.BackendPortAudio && opts.NewCapturer == nil {
		if err := audio.Initialize(); err != nil {
			return s, err
		}
		s.portaudio = true
	}

	if err := s.initMetrics(); err != nil {
		return s, err
	}

	s.capturer, err = s.newCapturer(backend, s.captureCfg)
	if err != nil {
		return s, fmt.Errorf("open %s capture: %w", backend, err)
	}

	pcfg, err := pipelineConfig(cfg, s.capturer.SampleRate())
	if err != nil {
		return s, err
	}
	s.pipeline, s.producer, err = analysis.NewPipeline(pcfg, s.metrics)
	if err != nil {
		return s, err
	}
	if _, err := s.metrics.ObserveRing(s.pipeline.Stats); err != nil {
		return s, err
	}

	s.axis, err = scale.NewLogAxis(cfg.Analysis.MinHz, cfg.Analysis.MaxHz, cfg.Analysis.Rows)
	if err != nil {
		return s, err
	}
	if err := s.initTransports(); err != nil {
		return s, err
	}
	for name, sink := range opts.ExtraSinks {
		s.pipeline.AddSink(name, sink)
	}
	return s, nil
}

func pipelineConfig(cfg *config.Config, sampleRate float64) (analysis.PipelineConfig, error) {
	window, err := fourier.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return analysis.PipelineConfig{}, err
	}
	interp, err := fourier.ParseInterpolator(cfg.Analysis.Interpolation)
	if err != nil {
		return analysis.PipelineConfig{}, err
	}
	return analysis.PipelineConfig{
		SampleRate:    sampleRate,
		WindowPeriod:  cfg.Analysis.WindowPeriod,
		StrideSeconds: cfg.Analysis.Stride,
		Window:        window,
		Interpolator:  interp,
		BufferSeconds: cfg.Audio.BufferSeconds,
		MaxPerTick:    cfg.Analysis.MaxPerTick,
	}, nil
}

func (s *Session) initMetrics() error {
	mp := otel.GetMeterProvider()
	if s.cfg.Metrics.Enabled {
		provider, err := observe.InitProvider()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		s.provider = provider
		mp = provider.MeterProvider
	}
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	s.metrics = metrics
	return nil
}

func (s *Session) initTransports() error {
	t := s.cfg.Transport
	an := s.cfg.Analysis
	minDB, maxDB := float32(an.MinDB), float32(an.MaxDB)

	var metricsHandler http.Handler
	if s.provider != nil {
		metricsHandler = s.provider.Handler
	}

	if t.WebSocket.Enabled {
		enc, err := transport.ParseEncoding(t.WebSocket.Encoding)
		if err != nil {
			return err
		}
		ws, err := transport.NewWebSocketTransport(transport.WebSocketOptions{
			Addr:           t.WebSocket.Addr,
			Encoding:       enc,
			MetricsHandler: metricsHandler,
			Metrics:        s.metrics,
		})
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		s.websocket = ws
		builder := transport.NewFrameBuilder(s.axis, minDB, maxDB, analysis.NewBandEnergy(nil))
		s.pipeline.AddSink("websocket", transport.NewSink(ws, builder))
	} else if metricsHandler != nil {
		ln, err := net.Listen("tcp", s.cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		s.metricsLn = ln
		s.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	if t.Log {
		builder := transport.NewFrameBuilder(s.axis, minDB, maxDB, analysis.NewBandEnergy(nil))
		s.pipeline.AddSink("log", transport.NewSink(transport.NewLoggingTransport(), builder))
	}

	if t.UDP.Enabled {
		sender, err := udp.NewUDPSender(t.UDP.Target)
		if err != nil {
			return err
		}
		pub, err := udp.NewUDPPublisher(sender, s.pipeline, udp.PublisherOptions{
			Interval: t.UDP.Interval,
			Axis:     s.axis,
			MinDB:    minDB,
			MaxDB:    maxDB,
			Metrics:  s.metrics,
		})
		if err != nil {
			sender.Close()
			return err
		}
		s.udp = pub
	}
	return nil
}

// Pipeline exposes the analysis pipeline, e.g. for a live view.
func (s *Session) Pipeline() *analysis.Pipeline { return s.pipeline }

// Axis is the display axis frames are rendered on.
func (s *Session) Axis() scale.LogAxis { return s.axis }

// Backend is the capture backend in use.
func (s *Session) Backend() audio.Backend { return s.backend }

// MetricsAddr is the standalone metrics listener, or nil.
func (s *Session) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// WebSocketAddr is the WebSocket listener, or nil.
func (s *Session) WebSocketAddr() net.Addr {
	if s.websocket == nil {
		return nil
	}
	return s.websocket.Addr()
}

// Devices lists the input devices the backend can switch to.
func (s *Session) Devices() ([]audio.Device, error) {
	return Devices(s.backend)
}

// finite is implemented by capturers that end on their own.
type finite interface {
	Done() <-chan struct{}
	Err() error
}

// Run starts capture and analysis and blocks until ctx is done, a component
// fails, or a finite source is exhausted. The last buffered audio is analysed
// before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.runCtx = ctx
	capturer := s.capturer
	err := capturer.Start(ctx, s.producer)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	applog.Infof("Session: Capturing with %s at %.0f Hz", s.backend, capturer.SampleRate())

	g.Go(func() error {
		return s.pipeline.Run(ctx, s.cfg.Analysis.TickInterval)
	})

	if fin, ok := capturer.(finite); ok {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case <-fin.Done():
			}
			if err := fin.Err(); err != nil {
				return fmt.Errorf("capture: %w", err)
			}
			applog.Infof("Session: Source finished")
			cancel()
			return nil
		})
	}

	if s.udp != nil {
		s.udp.Start()
	}

	if s.metricsServer != nil {
		g.Go(func() error {
			applog.Infof("Session: Serving metrics on %s", s.metricsLn.Addr())
			if err := s.metricsServer.Serve(s.metricsLn); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return s.metricsServer.Shutdown(sctx)
		})
	}

	err = g.Wait()

	s.mu.Lock()
	s.runCtx = nil
	stopErr := s.capturer.Stop()
	s.mu.Unlock()
	if s.udp != nil {
		s.udp.Stop()
	}

	// Flush whatever the source delivered after the last tick.
	for s.pipeline.Tick(context.Background()) > 0 {
	}

	return errors.Join(err, stopErr)
}

// SwitchDevice moves capture to another input device. The old stream is
// stopped before the pipeline is rebuilt for the new device's sample rate,
// so only one producer ever writes to a ring. A sampleRate of zero uses the
// device default. On failure the previous device keeps running.
func (s *Session) SwitchDevice(ctx context.Context, deviceID int, sampleRate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.capturer
	if s.runCtx != nil {
		if err := old.Stop(); err != nil {
			return fmt.Errorf("stop capture: %w", err)
		}
	}
	restore := func() {
		if s.runCtx != nil {
			if err := old.Start(s.runCtx, s.producer); err != nil {
				applog.Errorf("Session: Restarting previous device failed: %v", err)
			}
		}
	}

	ccfg := s.captureCfg
	ccfg.DeviceID = deviceID
	ccfg.SampleRate = sampleRate
	next, err := s.newCapturer(s.backend, ccfg)
	if err != nil {
		restore()
		return fmt.Errorf("open device %d: %w", deviceID, err)
	}

	producer, err := s.pipeline.Reconfigure(ctx, next.SampleRate())
	if err != nil {
		closeCapturer(next)
		restore()
		return err
	}

	if s.runCtx != nil {
		if err := next.Start(s.runCtx, producer); err != nil {
			closeCapturer(next)
			// The pipeline now expects the new rate; rebuild it for the old device.
			if prev, rerr := s.pipeline.Reconfigure(ctx, old.SampleRate()); rerr != nil {
				applog.Errorf("Session: Rebuilding pipeline for previous device failed: %v", rerr)
			} else {
				s.producer = prev
				restore()
			}
			return fmt.Errorf("start device %d: %w", deviceID, err)
		}
	}

	closeCapturer(old)
	s.capturer, s.producer, s.captureCfg = next, producer, ccfg
	applog.Infof("Session: Switched to device %d at %.0f Hz", deviceID, next.SampleRate())
	return nil
}

func closeCapturer(c audio.Capturer) {
	if closer, ok := c.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			applog.Warnf("Session: Closing capturer: %v", err)
		}
	}
}

// Close releases every resource. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		s.mu.Lock()
		if s.capturer != nil {
			errs = append(errs, s.capturer.Stop())
			closeCapturer(s.capturer)
		}
		s.mu.Unlock()

		if s.udp != nil {
			errs = append(errs, s.udp.Close())
		}
		if s.pipeline != nil {
			errs = append(errs, s.pipeline.Close())
		} else if s.websocket != nil {
			errs = append(errs, s.websocket.Close())
		}
		if s.metricsServer != nil {
			errs = append(errs, s.metricsServer.Close())
		}
		if s.metricsLn != nil {
			if err := s.metricsLn.Close(); !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		if s.provider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			errs = append(errs, s.provider.Shutdown(ctx))
			cancel()
		}
		if s.portaudio {
			errs = append(errs, audio.Terminate())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
