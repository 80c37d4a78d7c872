package cli

import (
	"sync/atomic"

	"simcam-go/internal/capture"
	"simcam-go/internal/ingest"
	"simcam-go/internal/pair"
	"simcam-go/internal/sink"
)

// PairingStats counts pairing outcomes reported so far.
type PairingStats struct {
	Paired  uint64 `json:"sessions_paired_total"`
	Skipped uint64 `json:"sessions_skipped_total"`
	Failed  uint64 `json:"sessions_failed_total"`
}

type pairCounters struct {
	paired  atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

func (c *pairCounters) snapshot() PairingStats {
	return PairingStats{
		Paired:  c.paired.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
	}
}

// progress returns a pair.Options.Progress callback that counts each session
// and emits one event per session on events. Sends never block; events may
// be nil.
func (c *pairCounters) progress(events chan<- any) func(pair.SessionReport) {
	return func(rep pair.SessionReport) {
		event := map[string]any{
			"session":     rep.Session,
			"written":     rep.Written,
			"duration_ms": rep.Duration.Milliseconds(),
		}
		switch {
		case rep.Err != nil:
			c.failed.Add(1)
			event["type"] = "session_failed"
			event["error"] = rep.Error
		case rep.Skipped:
			c.skipped.Add(1)
			event["type"] = "session_skipped"
		default:
			c.paired.Add(1)
			event["type"] = "session_paired"
		}
		select {
		case events <- event:
		default:
		}
	}
}

func captureStatus(session string, pipeline *capture.Pipeline, s *sink.Sink, pairing *pairCounters) func() map[string]any {
	return func() map[string]any {
		return map[string]any{
			"session":                      session,
			"capture":                      pipeline.Stats(),
			"sink":                         s.Stats(),
			"pairing":                      pairing.snapshot(),
			"ingest_decode_failures_total": ingest.DecodeFailures(),
		}
	}
}
