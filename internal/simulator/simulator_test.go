package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcam-go/internal/types"
)

func TestStreamLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msgs []types.RawMessage
	for msg := range Stream(ctx, Options{Width: 16, Height: 8, FPS: 1000, Session: "sim", MaxFrames: 3}) {
		msgs = append(msgs, msg)
	}

	// 2 registers, 3 x 2 images, 2 teardowns
	require.Len(t, msgs, 10)
	assert.Equal(t, types.MessageRegister, msgs[0].Type)
	assert.Equal(t, types.KindRGB, msgs[0].Register.Kind)
	assert.Equal(t, types.KindSegment, msgs[1].Register.Kind)
	assert.Equal(t, "sim", msgs[1].Register.Session)
	assert.NotEqual(t, msgs[0].SensorID, msgs[1].SensorID)

	for i, msg := range msgs[2:8] {
		require.Equal(t, types.MessageImage, msg.Type)
		assert.Equal(t, i/2, msg.Image.Index)
		assert.Equal(t, msgs[i%2].SensorID, msg.Image.SensorID)
		assert.NoError(t, msg.Image.CheckPayload())
	}
	assert.Equal(t, types.MessageTeardown, msgs[8].Type)
	assert.Equal(t, types.MessageTeardown, msgs[9].Type)
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Stream(ctx, Options{Width: 4, Height: 4, FPS: 1000})
	<-ch
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestFrameSegmentTags(t *testing.T) {
	f := Frame(16, 12, 0, types.KindSegment)
	tagAt := func(x, y int) byte { return f.Payload[(y*16+x)*types.BytesPerPixel+2] }

	assert.Equal(t, byte(tagSky), tagAt(10, 0))
	assert.Equal(t, byte(tagBuilding), tagAt(10, 5))
	assert.Equal(t, byte(tagRoad), tagAt(15, 11))
	// vehicle box starts at x=0 on frame 0
	assert.Equal(t, byte(tagVehicle), tagAt(0, 9))

	moved := Frame(16, 12, 5, types.KindSegment)
	assert.Equal(t, byte(tagVehicle), moved.Payload[(9*16+5)*types.BytesPerPixel+2])
}
