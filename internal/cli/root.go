package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"simcam-go/internal/config"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "text" | "json"
	LogFormat  string // "text" | "json"

	Config config.AppConfig
}

// NewRootCommand creates the simcam command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "simcam",
		Short:         "Capture and pair simulator camera frames",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return WrapExitError(ExitCommandError, "invalid flag", fmt.Errorf("format %q must be text or json", opts.Format))
			}
			if err := setupLogging(cmd.ErrOrStderr(), opts.LogFormat, opts.Verbose); err != nil {
				return WrapExitError(ExitCommandError, "invalid flag", err)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "result format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (text|json)")

	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewPairCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

func setupLogging(w io.Writer, format string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return fmt.Errorf("log format %q must be text or json", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
