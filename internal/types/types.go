package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SensorKind tags the camera a frame came from.
type SensorKind string

const (
	KindRGB     SensorKind = "rgb"
	KindSegment SensorKind = "segment"
)

// BytesPerPixel is the width of one pixel in a raw payload (BGRA, 8 bits each).
const BytesPerPixel = 4

// MaxDimension bounds frame width and height. Larger values are rejected
// before any buffer size is computed from them.
const MaxDimension = 1 << 14

// Frame is one image delivered by a simulated camera sensor.
// Payload holds raw BGRA pixels in row-major order and is only valid for the
// duration of the callback that received it.
type Frame struct {
	Index     int        `json:"frame" cbor:"frame"`
	SensorID  string     `json:"sensor_id" cbor:"sensor_id"`
	Kind      SensorKind `json:"sensor_kind,omitempty" cbor:"sensor_kind,omitempty"`
	Timestamp float64    `json:"timestamp" cbor:"timestamp"`
	Width     int        `json:"width" cbor:"width"`
	Height    int        `json:"height" cbor:"height"`
	Payload   []byte     `json:"-" cbor:"data"`
}

// CheckPayload reports whether the payload covers Width*Height pixels.
func (f Frame) CheckPayload() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Width > MaxDimension || f.Height > MaxDimension {
		return fmt.Errorf("frame size %dx%d exceeds %d", f.Width, f.Height, MaxDimension)
	}
	want := f.Width * f.Height * BytesPerPixel
	if len(f.Payload) < want {
		return fmt.Errorf("payload has %d bytes, want %d for %dx%d", len(f.Payload), want, f.Width, f.Height)
	}
	return nil
}

// CheckSession rejects session keys that are empty or would place frames
// outside their own directory under the output root.
func CheckSession(session string) error {
	if session == "" || session == "." || session == ".." ||
		strings.ContainsAny(session, `/\`) || !filepath.IsLocal(session) {
		return &ConfigurationError{Session: session}
	}
	return nil
}

// Registration announces a sensor before its frames arrive.
type Registration struct {
	SensorID string     `json:"sensor_id" cbor:"sensor_id"`
	Kind     SensorKind `json:"sensor_kind" cbor:"sensor_kind"`
	Session  string     `json:"session,omitempty" cbor:"session,omitempty"`
}

// Message types sent by the simulator bridge.
const (
	MessageRegister = "register"
	MessageImage    = "image"
	MessageTeardown = "teardown"
)

// RawMessage is one decoded bridge message. Exactly one of Register or Image
// is set for the matching Type; teardown carries only SensorID.
type RawMessage struct {
	Type     string
	SensorID string
	Register *Registration
	Image    *Frame
}
