// Package simulator produces a synthetic rgb + segment camera pair so the
// capture path can run without a simulator bridge.
package simulator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"simcam-go/internal/types"
)

// Options controls the synthetic stream.
type Options struct {
	Width   int
	Height  int
	FPS     float64
	Session string
	// MaxFrames stops the stream after this many frame pairs. Zero runs
	// until ctx is done.
	MaxFrames int
}

// Semantic tags used by the synthetic scene.
const (
	tagRoad     = 7
	tagVehicle  = 10
	tagSky      = 13
	tagBuilding = 1
)

// Stream registers two sensors, then emits one rgb and one segment frame per
// tick. Both sensors are torn down when MaxFrames is reached.
func Stream(ctx context.Context, opts Options) <-chan types.RawMessage {
	out := make(chan types.RawMessage)
	go func() {
		defer close(out)

		send := func(msg types.RawMessage) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- msg:
				return true
			}
		}

		sensors := []types.Registration{
			{SensorID: uuid.NewString(), Kind: types.KindRGB, Session: opts.Session},
			{SensorID: uuid.NewString(), Kind: types.KindSegment, Session: opts.Session},
		}
		for i := range sensors {
			reg := sensors[i]
			if !send(types.RawMessage{Type: types.MessageRegister, SensorID: reg.SensorID, Register: &reg}) {
				return
			}
		}

		fps := opts.FPS
		if fps <= 0 {
			fps = 10
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()

		start := time.Now()
		frameIndex := 0
		for {
			if opts.MaxFrames > 0 && frameIndex >= opts.MaxFrames {
				for _, reg := range sensors {
					if !send(types.RawMessage{Type: types.MessageTeardown, SensorID: reg.SensorID}) {
						return
					}
				}
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			ts := time.Since(start).Seconds()
			rgb := Frame(opts.Width, opts.Height, frameIndex, types.KindRGB)
			rgb.SensorID, rgb.Timestamp = sensors[0].SensorID, ts
			seg := Frame(opts.Width, opts.Height, frameIndex, types.KindSegment)
			seg.SensorID, seg.Timestamp = sensors[1].SensorID, ts

			if !send(types.RawMessage{Type: types.MessageImage, SensorID: rgb.SensorID, Image: &rgb}) {
				return
			}
			if !send(types.RawMessage{Type: types.MessageImage, SensorID: seg.SensorID, Image: &seg}) {
				return
			}
			frameIndex++
		}
	}()

	return out
}

// Frame renders one synthetic BGRA frame: sky over buildings over road, with
// a vehicle box sliding right by one column per frame.
func Frame(width, height, index int, kind types.SensorKind) types.Frame {
	if width < 1 || height < 1 {
		return types.Frame{Index: index, Kind: kind}
	}
	payload := make([]byte, width*height*types.BytesPerPixel)
	carW, carH := width/8+1, height/8+1
	carX := index % width
	carY := height*3/4 - carH/2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			tag := tagRoad
			switch {
			case y < height/3:
				tag = tagSky
			case y < height/2:
				tag = tagBuilding
			}
			if x >= carX && x < carX+carW && y >= carY && y < carY+carH {
				tag = tagVehicle
			}

			px := payload[(y*width+x)*types.BytesPerPixel:]
			if kind == types.KindSegment {
				px[0], px[1], px[2], px[3] = 0, 0, byte(tag), 255
				continue
			}
			shade := byte(40 + 160*y/max(height, 1))
			switch tag {
			case tagSky:
				px[0], px[1], px[2] = 220, 180-shade/4, 120
			case tagBuilding:
				px[0], px[1], px[2] = 90, 90, 90+shade/4
			case tagVehicle:
				px[0], px[1], px[2] = 30, 30, 200
			default:
				px[0], px[1], px[2] = shade/2, shade/2, shade/2
			}
			px[3] = 255
		}
	}
	return types.Frame{Index: index, Kind: kind, Width: width, Height: height, Payload: payload}
}
