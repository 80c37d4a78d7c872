package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"simcam-go/internal/pair"
)

// PlanEntry is one session in a dry run.
type PlanEntry struct {
	Session string      `json:"session"`
	Skip    bool        `json:"skip"`
	Pairs   []pair.Pair `json:"pairs"`
}

// NewPairCommand combines rgb and segment frames of every session under the
// output root.
func NewPairCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		workers int
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "pair [output-root]",
		Short: "Write side-by-side rgb|segment images into <session>/results/",
		Long: `Pair frames of each session positionally: the Nth rgb file (sorted by name)
is joined with the Nth segment file. Sessions that already have a results
directory are skipped. A frame missing from either stream shifts all later
pairs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootOpts.Config.OutputRoot
			if len(args) == 1 {
				root = args[0]
			}
			if !cmd.Flags().Changed("workers") {
				workers = rootOpts.Config.Workers
			}
			out := cmd.OutOrStdout()

			if dryRun {
				return runPlan(out, rootOpts.Format, root)
			}

			report, err := pair.Run(cmd.Context(), root, pair.Options{Workers: workers})
			if err != nil {
				return WrapExitError(ExitCommandError, "pair", err)
			}
			if err := writeResult(out, rootOpts.Format, report, func(w io.Writer) { printPairReport(w, report) }); err != nil {
				return err
			}
			if report.Failed > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d session(s) failed", report.Failed)}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "sessions paired in parallel")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the pairs without writing")

	return cmd
}

func runPlan(w io.Writer, format, root string) error {
	sessions, err := pair.Sessions(root)
	if err != nil {
		return WrapExitError(ExitCommandError, "pair", err)
	}
	plan := make([]PlanEntry, 0, len(sessions))
	for _, dir := range sessions {
		entry := PlanEntry{Session: filepath.Base(dir)}
		if exists(filepath.Join(dir, pair.ResultsDir)) {
			entry.Skip = true
		} else {
			pairs, err := pair.Plan(dir)
			if err != nil {
				return WrapExitError(ExitFailure, "plan "+entry.Session, err)
			}
			entry.Pairs = pairs
		}
		plan = append(plan, entry)
	}

	return writeResult(w, format, plan, func(w io.Writer) {
		for _, entry := range plan {
			if entry.Skip {
				fmt.Fprintf(w, "%s: already paired\n", entry.Session)
				continue
			}
			fmt.Fprintf(w, "%s: %d pair(s)\n", entry.Session, len(entry.Pairs))
			base := filepath.Join(root, entry.Session)
			for _, p := range entry.Pairs {
				fmt.Fprintf(w, "  %s + %s -> %s\n", rel(base, p.RGB), rel(base, p.Segment), rel(base, p.Output))
			}
		}
	})
}

func printPairReport(w io.Writer, report pair.Report) {
	for _, s := range report.Sessions {
		switch {
		case s.Err != nil:
			fmt.Fprintf(w, "%s: FAILED after %d pair(s): %v\n", s.Session, s.Written, s.Err)
		case s.Skipped:
			fmt.Fprintf(w, "%s: skipped (results exist)\n", s.Session)
		default:
			fmt.Fprintf(w, "%s: %d pair(s) written\n", s.Session, s.Written)
		}
	}
	fmt.Fprintf(w, "paired=%d skipped=%d failed=%d written=%d\n", report.Paired, report.Skipped, report.Failed, report.Written)
}
