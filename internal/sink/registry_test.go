package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcam-go/internal/imageio"
	"simcam-go/internal/types"
)

func TestRegistryRoutesBySensor(t *testing.T) {
	s := newTestSink(t, imageio.PNG)
	reg := NewRegistry(s, 1)

	rgb := reg.Register("cam-1", types.KindRGB, "run")
	seg := reg.Register("cam-2", types.KindSegment, "run")
	require.Equal(t, 2, reg.Len())

	rgb(testFrame(10, 2, 2))
	seg(testFrame(10, 2, 2))
	seg(testFrame(11, 2, 2))

	assert.ElementsMatch(t,
		[]string{"run/rgb/10.png", "run/segment/10.png", "run/segment/11.png"},
		listFiles(t, s.Root()))
}

func TestRegistryDropsAfterUnregister(t *testing.T) {
	s := newTestSink(t, imageio.PNG)
	reg := NewRegistry(s, 1)

	handler := reg.Register("cam-1", types.KindRGB, "run")
	reg.Unregister("cam-1")
	handler(testFrame(1, 2, 2))

	assert.Empty(t, listFiles(t, s.Root()))
	assert.Equal(t, uint64(1), reg.Dropped())
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryDispatchUnknownSensor(t *testing.T) {
	s := newTestSink(t, imageio.PNG)
	reg := NewRegistry(s, 1)

	frame := testFrame(1, 2, 2)
	frame.SensorID = "ghost"
	assert.False(t, reg.Dispatch(frame))
	assert.Equal(t, uint64(1), reg.Dropped())
}

func TestRegistryHandlerSwallowsErrors(t *testing.T) {
	s := newTestSink(t, imageio.PNG)
	reg := NewRegistry(s, 1)

	handler := reg.Register("cam-1", "infrared", "run")
	assert.NotPanics(t, func() { handler(testFrame(1, 2, 2)) })

	bad := testFrame(2, 2, 2)
	bad.Payload = nil
	assert.NotPanics(t, func() { handler(bad) })

	assert.Equal(t, uint64(2), s.Stats().Failed)
	assert.Empty(t, listFiles(t, s.Root()))
}

func TestRegistryDispatchRecoversPanic(t *testing.T) {
	// A sink without a conversion table panics on the first lookup.
	reg := NewRegistry(&Sink{}, 1)
	reg.Register("cam-1", types.KindRGB, "run")

	frame := testFrame(1, 2, 2)
	frame.SensorID = "cam-1"
	var written bool
	require.NotPanics(t, func() { written = reg.Dispatch(frame) })
	assert.False(t, written)
	assert.Equal(t, uint64(1), reg.Panics())
}
