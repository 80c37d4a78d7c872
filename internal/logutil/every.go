// Package logutil holds small logging helpers shared by the hot paths.
package logutil

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// EveryN logs only every Nth call. Safe for concurrent use.
type EveryN struct {
	n     uint64
	count atomic.Uint64
}

// NewEveryN returns a limiter that lets one call in n through. n < 1 logs
// every call.
func NewEveryN(n int) *EveryN {
	if n < 1 {
		n = 1
	}
	return &EveryN{n: uint64(n)}
}

// Log emits msg at level when the call count is a multiple of n. The running
// count is attached as "occurrences".
func (e *EveryN) Log(level slog.Level, msg string, args ...any) {
	c := e.count.Add(1)
	if (c-1)%e.n != 0 {
		return
	}
	args = append(args, "occurrences", c)
	slog.Log(context.Background(), level, msg, args...)
}

// Count is the number of calls so far.
func (e *EveryN) Count() uint64 {
	return e.count.Load()
}
