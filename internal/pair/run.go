package pair

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"simcam-go/internal/types"
)

// SessionReport is the outcome of one session in a Run.
type SessionReport struct {
	Result
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report aggregates a Run. Sessions are sorted by name.
type Report struct {
	Sessions []SessionReport `json:"sessions"`
	Paired   int             `json:"paired"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Written  int             `json:"written"`
}

// Options tunes Run.
type Options struct {
	// Workers bounds how many sessions are combined at once. Values < 1 use 1.
	Workers int
	// Progress, if set, is called once per finished session. It may be
	// called from several goroutines.
	Progress func(SessionReport)
}

// Sessions lists the session directories directly under root, sorted.
func Sessions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &types.FilesystemError{Op: "list", Path: root, Err: err}
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !hidden(entry.Name()) {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run combines every session under root on a fixed-size worker pool. A
// failing session does not stop the others; its error is kept in the report.
// The returned error is non-nil only when root cannot be listed or ctx is
// cancelled before all sessions were scheduled.
func Run(ctx context.Context, root string, opts Options) (Report, error) {
	sessions, err := Sessions(root)
	if err != nil {
		return Report{}, err
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		reports = make([]SessionReport, 0, len(sessions))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, dir := range sessions {
		if gctx.Err() != nil {
			break
		}
		dir := dir
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			start := time.Now()
			res, err := Combine(dir)
			rep := SessionReport{Result: res, Err: err, Duration: time.Since(start)}
			if err != nil {
				rep.Error = err.Error()
				slog.Error("session pairing failed", "session", res.Session, "written", res.Written, "error", err)
			} else if res.Skipped {
				slog.Debug("session already paired", "session", res.Session)
			} else {
				slog.Info("session paired", "session", res.Session, "written", res.Written, "duration", rep.Duration)
			}

			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress(rep)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Session < reports[j].Session })
	report := Report{Sessions: reports}
	for _, rep := range reports {
		report.Written += rep.Written
		switch {
		case rep.Err != nil:
			report.Failed++
		case rep.Skipped:
			report.Skipped++
		default:
			report.Paired++
		}
	}
	return report, ctx.Err()
}
