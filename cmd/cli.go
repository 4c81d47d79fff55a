// SPDX-License-Identifier: MIT
//
// Package cmd defines the command line interface.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"spectrogram/internal/analysis"
	"spectrogram/internal/app"
	"spectrogram/internal/audio"
	"spectrogram/internal/config"
	"spectrogram/internal/decode"
	"spectrogram/internal/fourier"
	applog "spectrogram/internal/log"
	"spectrogram/internal/scale"
	"spectrogram/internal/tui"
	"spectrogram/pkg/build"
)

// options holds the flag values. Only flags the user set override the config
// file.
type options struct {
	configPath string
	logLevel   string
	verbose    bool

	backend         string
	deviceID        int
	sampleRate      float64
	channels        int
	framesPerBuffer int
	lowLatency      bool

	headless  bool
	file      string
	wsAddr    string
	encoding  string
	udpTarget string

	period   float64
	stride   float64
	window   string
	interval time.Duration
}

// Execute runs the command line against args.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	rootCmd, _ := newRootCommand()
	return rootCmd
}

func newRootCommand() (*cobra.Command, *options) {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, opts)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default: search config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Shorthand for --log-level debug")
	pf.StringVar(&opts.backend, "backend", config.DefaultBackend, "Capture backend: portaudio, malgo or file")

	f := rootCmd.Flags()
	f.IntVarP(&opts.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	f.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&opts.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	f.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&opts.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	f.BoolVar(&opts.headless, "headless", false, "Run without the terminal UI, publishing to the configured transports")
	f.StringVarP(&opts.file, "file", "f", "", "Analyse an audio file in real time instead of a device")
	f.StringVar(&opts.wsAddr, "ws", "", "Serve frames over WebSocket on this address, e.g. :8080")
	f.StringVar(&opts.encoding, "encoding", "", "WebSocket frame encoding: json or msgpack")
	f.StringVar(&opts.udpTarget, "udp", "", "Send UDP packets to host:port")
	addAnalysisFlags(f, opts)
	f.DurationVar(&opts.interval, "interval", config.DefaultTickInterval, "How often the pipeline drains captured audio")

	rootCmd.AddCommand(newListCommand(opts), newAnalyzeCommand(opts), newVersionCommand())
	return rootCmd, opts
}

type flagSet interface {
	Float64Var(p *float64, name string, value float64, usage string)
	StringVar(p *string, name string, value string, usage string)
}

func addAnalysisFlags(f flagSet, opts *options) {
	f.Float64Var(&opts.period, "period", config.DefaultWindowPeriod, "Analysis window length in seconds")
	f.Float64Var(&opts.stride, "stride", config.DefaultStride, "Seconds between analysis windows")
	f.StringVar(&opts.window, "window", config.DefaultWindow, "Window function, e.g. hann, hamming, blackman")
}

// loadConfig reads the config file, applies set flags and configures logging.
// The returned closer releases the log file.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, io.Closer, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if changed("backend") {
		cfg.Audio.Backend = opts.backend
	}
	if changed("device") {
		cfg.Audio.InputDevice = opts.deviceID
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if changed("channels") {
		cfg.Audio.InputChannels = opts.channels
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = opts.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if opts.file != "" {
		cfg.Audio.Backend = string(audio.BackendFile)
		cfg.Audio.File = opts.file
	}
	if opts.wsAddr != "" {
		cfg.Transport.WebSocket.Enabled = true
		cfg.Transport.WebSocket.Addr = opts.wsAddr
	}
	if changed("encoding") {
		cfg.Transport.WebSocket.Encoding = opts.encoding
	}
	if opts.udpTarget != "" {
		cfg.Transport.UDP.Enabled = true
		cfg.Transport.UDP.Target = opts.udpTarget
	}
	if changed("period") {
		cfg.Analysis.WindowPeriod = opts.period
	}
	if changed("stride") {
		cfg.Analysis.Stride = opts.stride
	}
	if changed("window") {
		cfg.Analysis.Window = opts.window
	}
	if changed("interval") {
		cfg.Analysis.TickInterval = opts.interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := applog.Configure(applog.Options{
		Level:      cfg.LogLevel,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}

func runLive(cmd *cobra.Command, opts *options) error {
	cfg, logCloser, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// The terminal belongs to the UI; logs go to the configured file or nowhere.
	if !opts.headless && cfg.Log.File == "" {
		applog.SetOutput(io.Discard)
	}

	session, err := app.NewSession(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer session.Close()

	if addr := session.WebSocketAddr(); addr != nil {
		applog.Infof("Serving WebSocket frames on ws://%s/ws", addr)
	}

	if opts.headless {
		return session.Run(cmd.Context())
	}

	var switcher tui.Switcher
	if session.Backend() != audio.BackendFile {
		switcher = session
	}
	title := fmt.Sprintf("%s %s", build.GetBuildFlags().Name, build.GetBuildFlags().Version)

	g, ctx := errgroup.WithContext(cmd.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.Go(func() error {
		// The UI keeps showing the last spectrum when a file ends.
		return session.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(ctx, session.Pipeline(), tui.Options{
			Title:    title,
			Axis:     session.Axis(),
			MinDB:    float32(cfg.Analysis.MinDB),
			MaxDB:    float32(cfg.Analysis.MaxDB),
			Switcher: switcher,
		})
	})
	return g.Wait()
}

func newListCommand(opts *options) *cobra.Command {
	var interactive bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := audio.ParseBackend(opts.backend)
			if err != nil {
				return err
			}
			if backend == audio.BackendFile {
				return errors.New("the file backend has no devices")
			}
			if backend == audio.BackendPortAudio {
				if err := audio.Initialize(); err != nil {
					return err
				}
				defer audio.Terminate()
			}

			if interactive {
				sel, err := tui.StartDeviceListUI(func() ([]audio.Device, error) { return app.Devices(backend) })
				if err != nil || sel == nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "--device %d --sample-rate %.0f\n", sel.Device.ID, sel.SampleRate)
				return nil
			}

			if backend == audio.BackendMalgo {
				devices, err := audio.MalgoDevices()
				if err != nil {
					return err
				}
				return audio.WriteDevices(cmd.OutOrStdout(), devices)
			}
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
	listCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick a device and sample rate interactively")
	return listCmd
}

func newAnalyzeCommand(opts *options) *cobra.Command {
	var (
		format string
		every  int
		bands  bool
	)
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyse an audio file offline and print the peak frequency per window",
		Long: "Decodes a WAV, AIFF, MP3 or Ogg Vorbis file, runs the windowed transform over it\n" +
			"and prints one line per window with the peak frequency and optional band levels.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = ""
			cfg, logCloser, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			window, err := fourier.ParseWindowFunc(cfg.Analysis.Window)
			if err != nil {
				return err
			}
			interp, err := fourier.ParseInterpolator(cfg.Analysis.Interpolation)
			if err != nil {
				return err
			}
			pcfg := analysis.PipelineConfig{
				WindowPeriod:  cfg.Analysis.WindowPeriod,
				StrideSeconds: cfg.Analysis.Stride,
				Window:        window,
				Interpolator:  interp,
			}
			var be *analysis.BandEnergy
			if bands {
				be = analysis.NewBandEnergy(nil)
			}

			src, err := decode.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			applog.Infof("Analyze: %s, %d ch @ %d Hz", filepath.Base(args[0]), src.Channels(), src.SampleRate())

			w, err := newReportWriter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			err = analysis.Offline(src, pcfg, be, func(r analysis.Report) error {
				if every > 1 && r.Index%every != 0 {
					return nil
				}
				return w.write(r)
			})
			return errors.Join(err, w.flush())
		},
	}
	f := analyzeCmd.Flags()
	f.StringVarP(&format, "output", "o", "text", "Output format: text, json or yaml")
	f.IntVar(&every, "every", 1, "Print every n-th window")
	f.BoolVar(&bands, "bands", false, "Include band levels")
	addAnalysisFlags(f, opts)
	return analyzeCmd
}

type reportWriter struct {
	write func(analysis.Report) error
	flush func() error
}

func newReportWriter(w io.Writer, format string) (*reportWriter, error) {
	switch format {
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WINDOW\tTIME (s)\tPEAK (Hz)\tLEVEL (dB)\tBANDS")
		return &reportWriter{
			write: func(r analysis.Report) error {
				_, err := fmt.Fprintf(tw, "%d\t%.3f\t%.1f\t%.1f\t%s\n",
					r.Index, r.Time, r.PeakHz, scale.ToDecibels(r.PeakLevel), formatBands(r.Bands))
				return err
			},
			flush: tw.Flush,
		}, nil
	case "json":
		enc := json.NewEncoder(w)
		return &reportWriter{
			write: func(r analysis.Report) error { return enc.Encode(r) },
			flush: func() error { return nil },
		}, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		return &reportWriter{
			write: func(r analysis.Report) error { return enc.Encode(r) },
			flush: enc.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func formatBands(bands map[string]float32) string {
	if len(bands) == 0 {
		return "-"
	}
	var out []byte
	for _, b := range analysis.DefaultBands() {
		v, ok := bands[b.Name]
		if !ok {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = fmt.Appendf(out, "%s=%.1f", b.Name, scale.ToDecibels(v))
	}
	return string(out)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.GetBuildFlags())
		},
	}
}
