package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"simcam-go/internal/capture"
	"simcam-go/internal/ingest"
	"simcam-go/internal/output"
	"simcam-go/internal/sink"
	"simcam-go/internal/types"
)

// NewReplayCommand feeds a raw bridge journal back through the sink, or
// dumps it as JSON.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		outputRoot  string
		session     string
		imageFormat string
		dump        bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "replay <journal.bin>",
		Short: "Re-render a raw bridge journal, or dump it with --dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "open journal", err)
			}
			defer f.Close()
			journal, err := output.NewRawLogReader(f)
			if err != nil {
				return WrapExitError(ExitCommandError, "open journal", err)
			}

			if dump {
				return dumpJournal(cmd.OutOrStdout(), journal, limit)
			}

			cfg := rootOpts.Config
			if cmd.Flags().Changed("output") {
				cfg.OutputRoot = outputRoot
			}
			if cmd.Flags().Changed("image-format") {
				cfg.Format = imageFormat
			}
			if cmd.Flags().Changed("session") {
				cfg.Session = session
			}
			if err := cfg.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			session = cfg.Session
			if session == "" {
				session = capture.Timestamp()
			}
			s, err := newSink(cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "create sink", err)
			}
			pipeline := capture.NewPipeline(sink.NewRegistry(s, cfg.IngestLogEvery), session, cfg.Workers, nil)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			messages := make(chan types.RawMessage)
			readErr := make(chan error, 1)
			go func() {
				defer close(messages)
				readErr <- feedJournal(ctx, journal, messages, limit)
			}()
			if err := pipeline.Run(ctx, messages); err != nil && !errors.Is(err, context.Canceled) {
				return WrapExitError(ExitFailure, "replay", err)
			}
			if err := <-readErr; err != nil {
				return WrapExitError(ExitFailure, "read journal", err)
			}

			summary := CaptureSummary{Session: session, Root: cfg.OutputRoot, Capture: pipeline.Stats(), Sink: s.Stats()}
			return writeResult(cmd.OutOrStdout(), rootOpts.Format, summary, func(w io.Writer) {
				fmt.Fprintf(w, "replayed into %s: %d frames, %d written, %d failed, %d dropped\n",
					session, summary.Capture.Received, summary.Sink.Written, summary.Sink.Failed, summary.Capture.Dropped)
			})
		},
	}

	cmd.Flags().StringVarP(&outputRoot, "output", "o", "_out", "output root directory")
	cmd.Flags().StringVar(&session, "session", "", "session key for sensors that registered without one")
	cmd.Flags().StringVar(&imageFormat, "image-format", "jpeg", "image format (jpeg|png|bmp|tiff)")
	cmd.Flags().BoolVar(&dump, "dump", false, "print records as JSON instead of replaying")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after N records (0 = all)")

	return cmd
}

func feedJournal(ctx context.Context, journal *output.RawLogReader, out chan<- types.RawMessage, limit int) error {
	for count := 0; limit <= 0 || count < limit; count++ {
		rec, err := journal.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		msg, err := ingest.DecodeMessage(rec.Payload)
		if err != nil {
			slog.Debug("journal record skipped", "record", count, "error", err)
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case out <- msg:
		}
	}
	return nil
}

func dumpJournal(w io.Writer, journal *output.RawLogReader, limit int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for count := 0; limit <= 0 || count < limit; count++ {
		rec, err := journal.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return WrapExitError(ExitFailure, "read journal", err)
		}
		var decoded any
		if err := cbor.Unmarshal(rec.Payload, &decoded); err != nil {
			slog.Warn("journal record is not CBOR", "record", count, "error", err)
			continue
		}
		entry := map[string]any{
			"record":    count,
			"timestamp": rec.Time.Format(time.RFC3339Nano),
			"size":      len(rec.Payload),
			"message":   output.NormalizeJSONValue(decoded),
		}
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}
