package capture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcam-go/internal/imageio"
	"simcam-go/internal/simulator"
	"simcam-go/internal/sink"
	"simcam-go/internal/types"
)

func newRegistry(t *testing.T) (*sink.Sink, *sink.Registry) {
	t.Helper()
	s, err := sink.New(sink.Options{OutputRoot: t.TempDir(), Format: imageio.PNG})
	require.NoError(t, err)
	return s, sink.NewRegistry(s, 1)
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func TestPipelineWritesSimulatedCapture(t *testing.T) {
	s, reg := newRegistry(t)
	events := make(chan any, 16)
	p := NewPipeline(reg, "sim", 3, events)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msgs := simulator.Stream(ctx, simulator.Options{Width: 8, Height: 6, FPS: 500, MaxFrames: 4})

	require.NoError(t, p.Run(ctx, msgs))

	want := []string{"0.png", "1.png", "2.png", "3.png"}
	assert.Equal(t, want, names(t, filepath.Join(s.Root(), "sim", "rgb")))
	assert.Equal(t, want, names(t, filepath.Join(s.Root(), "sim", "segment")))

	stats := p.Stats()
	assert.Equal(t, uint64(8), stats.Received)
	assert.Equal(t, uint64(0), stats.Dropped)
	assert.Equal(t, 0, stats.Sensors)
	assert.NotEmpty(t, stats.LastFrame)
	assert.Equal(t, uint64(8), s.Stats().Written)
	assert.Len(t, events, 4)
}

func TestPipelineRoutesBySession(t *testing.T) {
	s, reg := newRegistry(t)
	p := NewPipeline(reg, "default", 2, nil)

	frame := simulator.Frame(4, 4, 9, types.KindRGB)
	msgs := make(chan types.RawMessage, 8)
	msgs <- types.RawMessage{Type: types.MessageRegister, SensorID: "a", Register: &types.Registration{SensorID: "a", Kind: types.KindRGB, Session: "explicit"}}
	msgs <- types.RawMessage{Type: types.MessageRegister, SensorID: "b", Register: &types.Registration{SensorID: "b", Kind: types.KindRGB}}
	fa, fb, fc := frame, frame, frame
	fa.SensorID, fb.SensorID, fc.SensorID = "a", "b", "c"
	msgs <- types.RawMessage{Type: types.MessageImage, SensorID: "a", Image: &fa}
	msgs <- types.RawMessage{Type: types.MessageImage, SensorID: "b", Image: &fb}
	msgs <- types.RawMessage{Type: types.MessageImage, SensorID: "c", Image: &fc}
	msgs <- types.RawMessage{Type: "heartbeat"}
	close(msgs)

	require.NoError(t, p.Run(context.Background(), msgs))

	assert.Equal(t, []string{"9.png"}, names(t, filepath.Join(s.Root(), "explicit", "rgb")))
	assert.Equal(t, []string{"9.png"}, names(t, filepath.Join(s.Root(), "default", "rgb")))
	assert.Equal(t, uint64(1), p.Stats().Dropped)
	assert.Equal(t, 2, p.Stats().Sensors)
}

func TestPipelineStopsOnCancel(t *testing.T) {
	_, reg := newRegistry(t)
	p := NewPipeline(reg, "run", 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, make(chan types.RawMessage))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipelineSurvivesOversizedFrame(t *testing.T) {
	s, reg := newRegistry(t)
	p := NewPipeline(reg, "run", 2, nil)

	huge := types.Frame{Index: 1, SensorID: "cam", Width: 1 << 31, Height: 1 << 31, Payload: []byte{}}
	good := simulator.Frame(4, 4, 2, types.KindRGB)
	good.SensorID = "cam"

	msgs := make(chan types.RawMessage, 4)
	msgs <- types.RawMessage{Type: types.MessageRegister, SensorID: "cam", Register: &types.Registration{SensorID: "cam", Kind: types.KindRGB}}
	msgs <- types.RawMessage{Type: types.MessageImage, SensorID: "cam", Image: &huge}
	msgs <- types.RawMessage{Type: types.MessageImage, SensorID: "cam", Image: &good}
	close(msgs)

	require.NoError(t, p.Run(context.Background(), msgs))

	assert.Equal(t, []string{"2.png"}, names(t, filepath.Join(s.Root(), "run", "rgb")))
	assert.Equal(t, uint64(1), s.Stats().Failed)
	assert.Equal(t, uint64(0), reg.Panics())
}

func TestPipelineRejectsEscapingSession(t *testing.T) {
	s, reg := newRegistry(t)
	events := make(chan any, 4)
	p := NewPipeline(reg, "run", 1, events)

	frame := simulator.Frame(4, 4, 1, types.KindRGB)
	frame.SensorID = "cam"
	msgs := make(chan types.RawMessage, 2)
	msgs <- types.RawMessage{Type: types.MessageRegister, SensorID: "cam", Register: &types.Registration{SensorID: "cam", Kind: types.KindRGB, Session: "../outside"}}
	msgs <- types.RawMessage{Type: types.MessageImage, SensorID: "cam", Image: &frame}
	close(msgs)

	require.NoError(t, p.Run(context.Background(), msgs))

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, uint64(1), p.Stats().Dropped)
	assert.Empty(t, names(t, s.Root()))
	_, err := os.Stat(filepath.Join(filepath.Dir(s.Root()), "outside"))
	assert.True(t, os.IsNotExist(err))
	require.Len(t, events, 1)
	assert.Equal(t, "sensor_rejected", (<-events).(map[string]any)["type"])
}
