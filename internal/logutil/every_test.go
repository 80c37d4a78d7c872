package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestEveryNLogsFirstAndEveryNth(t *testing.T) {
	buf := captureLogs(t)
	e := NewEveryN(3)

	for i := 0; i < 7; i++ {
		e.Log(slog.LevelWarn, "dropped")
	}

	// calls 1, 4 and 7
	assert.Equal(t, 3, strings.Count(buf.String(), "dropped"))
	assert.Equal(t, uint64(7), e.Count())
}

func TestEveryNConcurrent(t *testing.T) {
	captureLogs(t)
	e := NewEveryN(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.Log(slog.LevelDebug, "x")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), e.Count())
}
