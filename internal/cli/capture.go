package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"simcam-go/internal/capture"
	"simcam-go/internal/config"
	"simcam-go/internal/ingest"
	"simcam-go/internal/output"
	"simcam-go/internal/pair"
	"simcam-go/internal/server"
	"simcam-go/internal/simulator"
	"simcam-go/internal/sink"
	"simcam-go/internal/types"
)

// CaptureSummary is printed when a capture ends.
type CaptureSummary struct {
	Session string        `json:"session"`
	Root    string        `json:"output_root"`
	Capture capture.Stats `json:"capture"`
	Sink    sink.Stats    `json:"sink"`
	Pairing *pair.Report  `json:"pairing,omitempty"`
}

type captureFlags struct {
	output      string
	session     string
	imageFormat string
	quality     int
	endpoint    string
	port        int
	workers     int
	rawLog      bool
	rawLogDir   string
	debug       bool
	debugFPS    float64
	frames      int
	pairOnExit  bool
	logEvery    int

	statusInterval time.Duration
}

// NewCaptureCommand records frames from the simulator bridge, or from the
// built-in synthetic camera pair with --debug.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	f := &captureFlags{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record camera frames into <output>/<session>/<kind>/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			applyCaptureFlags(cmd, f, &cfg)
			if err := cfg.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return runCapture(cmd.Context(), cmd.OutOrStdout(), rootOpts.Format, cfg, f.frames)
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVarP(&f.output, "output", "o", defaults.OutputRoot, "output root directory")
	cmd.Flags().StringVar(&f.session, "session", "", "session key (default: start timestamp)")
	cmd.Flags().StringVar(&f.imageFormat, "image-format", defaults.Format, "image format (jpeg|png|bmp|tiff)")
	cmd.Flags().IntVar(&f.quality, "quality", defaults.Quality, "JPEG quality (1-100)")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", defaults.Endpoint, "ZeroMQ endpoint of the simulator bridge")
	cmd.Flags().IntVar(&f.port, "port", 0, "status server port (0 disables)")
	cmd.Flags().DurationVar(&f.statusInterval, "status-interval", defaults.StatusInterval, "status push interval for websocket clients (0 disables)")
	cmd.Flags().IntVar(&f.workers, "workers", defaults.Workers, "frame writer goroutines")
	cmd.Flags().BoolVar(&f.rawLog, "raw-log", false, "journal raw bridge messages")
	cmd.Flags().StringVar(&f.rawLogDir, "raw-log-dir", defaults.RawLogDir, "directory for raw bridge journals")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "use the synthetic camera pair instead of the bridge")
	cmd.Flags().Float64Var(&f.debugFPS, "debug-fps", defaults.DebugFPS, "synthetic frame rate")
	cmd.Flags().IntVar(&f.frames, "frames", 0, "stop the synthetic stream after N frames (0 = until interrupted)")
	cmd.Flags().BoolVar(&f.pairOnExit, "pair-on-exit", false, "pair sessions when capture stops")
	cmd.Flags().IntVar(&f.logEvery, "ingest-log-every", defaults.IngestLogEvery, "log every Nth per-frame error")

	return cmd
}

func applyCaptureFlags(cmd *cobra.Command, f *captureFlags, cfg *config.AppConfig) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.OutputRoot = f.output
	}
	if changed("session") {
		cfg.Session = f.session
	}
	if changed("image-format") {
		cfg.Format = f.imageFormat
	}
	if changed("quality") {
		cfg.Quality = f.quality
	}
	if changed("endpoint") {
		cfg.Endpoint = f.endpoint
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("raw-log") {
		cfg.RawLogEnabled = f.rawLog
	}
	if changed("raw-log-dir") {
		cfg.RawLogDir = f.rawLogDir
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("debug-fps") {
		cfg.DebugFPS = f.debugFPS
	}
	if changed("pair-on-exit") {
		cfg.PairOnExit = f.pairOnExit
	}
	if changed("status-interval") {
		cfg.StatusInterval = f.statusInterval
	}
	if changed("ingest-log-every") {
		cfg.IngestLogEvery = f.logEvery
	}
}

func newSink(cfg config.AppConfig) (*sink.Sink, error) {
	table, err := cfg.ConversionTable()
	if err != nil {
		return nil, err
	}
	return sink.New(sink.Options{
		OutputRoot:  cfg.OutputRoot,
		Format:      cfg.ImageFormat(),
		Quality:     cfg.Quality,
		Conversions: table,
	})
}

func runCapture(ctx context.Context, w io.Writer, format string, cfg config.AppConfig, maxFrames int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	session := cfg.Session
	if session == "" {
		session = capture.Timestamp()
	}

	s, err := newSink(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "create sink", err)
	}
	registry := sink.NewRegistry(s, cfg.IngestLogEvery)
	events := make(chan any, 64)
	pipeline := capture.NewPipeline(registry, session, cfg.Workers, events)
	pairing := &pairCounters{}

	var messages <-chan types.RawMessage
	if cfg.Debug {
		slog.Info("capturing from synthetic cameras", "session", session, "fps", cfg.DebugFPS)
		messages = simulator.Stream(ctx, simulator.Options{
			Width:     cfg.DebugWidth,
			Height:    cfg.DebugHeight,
			FPS:       cfg.DebugFPS,
			Session:   session,
			MaxFrames: maxFrames,
		})
	} else {
		var recorder ingest.RawRecorder
		if cfg.RawLogEnabled {
			journal, err := output.NewRawLogWriter(cfg.RawLogDir, "bridge")
			if err != nil {
				return WrapExitError(ExitCommandError, "start raw log", err)
			}
			defer func() {
				if err := journal.Close(); err != nil {
					slog.Error("raw log close failed", "error", err)
				}
			}()
			slog.Info("journaling bridge messages", "path", journal.Path())
			recorder = journal
		}
		stream, err := ingest.StreamWithRecorder(ctx, cfg.Endpoint, cfg.IngestLogEvery, recorder)
		if err != nil {
			return WrapExitError(ExitCommandError, "start ingest", err)
		}
		slog.Info("capturing from bridge", "endpoint", cfg.Endpoint, "session", session)
		messages = stream
	}

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if cfg.Port > 0 {
		srv := server.New(
			captureStatus(session, pipeline, s, pairing),
			func() map[string]any {
				return map[string]any{
					"output_root": cfg.OutputRoot,
					"format":      cfg.Format,
					"endpoint":    cfg.Endpoint,
					"debug":       cfg.Debug,
					"conversions": cfg.Conversions,
				}
			},
		)
		go func() {
			if err := srv.Run(srvCtx, cfg.Port, cfg.StatusInterval, events); err != nil {
				slog.Error("status server stopped", "error", err)
			}
		}()
	} else {
		go drain(srvCtx, events)
	}

	if err := pipeline.Run(ctx, messages); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "capture", err)
	}

	summary := CaptureSummary{
		Session: session,
		Root:    cfg.OutputRoot,
		Capture: pipeline.Stats(),
		Sink:    s.Stats(),
	}
	slog.Info("capture stopped", "session", session, "written", summary.Sink.Written, "failed", summary.Sink.Failed)

	if cfg.PairOnExit {
		report, err := pair.Run(context.Background(), cfg.OutputRoot, pair.Options{
			Workers:  cfg.Workers,
			Progress: pairing.progress(events),
		})
		if err != nil {
			return WrapExitError(ExitFailure, "pair", err)
		}
		summary.Pairing = &report
	}

	return writeResult(w, format, summary, func(w io.Writer) {
		fmt.Fprintf(w, "session %s: %d frames received, %d written, %d failed, %d dropped\n",
			session, summary.Capture.Received, summary.Sink.Written, summary.Sink.Failed, summary.Capture.Dropped)
		if summary.Pairing != nil {
			printPairReport(w, *summary.Pairing)
		}
	})
}

func drain(ctx context.Context, events <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
		}
	}
}
