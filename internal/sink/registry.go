package sink

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"simcam-go/internal/logutil"
	"simcam-go/internal/types"
)

// Handler accepts one frame. Failures are logged and counted, never returned.
type Handler func(types.Frame)

type subscription struct {
	kind    types.SensorKind
	session string
}

// Registry maps sensor ids to their kind and session so a frame carrying only
// a sensor id can be routed to the sink. Handlers resolve their sensor on
// every call, so a torn-down sensor simply stops recording.
type Registry struct {
	sink *Sink

	mu      sync.RWMutex
	sensors map[string]subscription

	dropped   atomic.Uint64
	panics    atomic.Uint64
	dropLog   *logutil.EveryN
	recordLog *logutil.EveryN
}

// NewRegistry returns an empty registry writing through s. logEvery limits
// per-frame log lines.
func NewRegistry(s *Sink, logEvery int) *Registry {
	return &Registry{
		sink:      s,
		sensors:   make(map[string]subscription),
		dropLog:   logutil.NewEveryN(logEvery),
		recordLog: logutil.NewEveryN(logEvery),
	}
}

// Register subscribes sensorID and returns the handler to attach to the
// sensor's frame stream. Registering an existing id replaces its entry.
func (r *Registry) Register(sensorID string, kind types.SensorKind, session string) Handler {
	r.mu.Lock()
	r.sensors[sensorID] = subscription{kind: kind, session: session}
	r.mu.Unlock()
	slog.Info("sensor registered", "sensor_id", sensorID, "kind", kind, "session", session)

	return func(frame types.Frame) {
		frame.SensorID = sensorID
		r.Dispatch(frame)
	}
}

// Unregister removes sensorID. Frames that arrive afterwards are dropped.
func (r *Registry) Unregister(sensorID string) {
	r.mu.Lock()
	_, ok := r.sensors[sensorID]
	delete(r.sensors, sensorID)
	r.mu.Unlock()
	if ok {
		slog.Info("sensor unregistered", "sensor_id", sensorID)
	}
}

// Len is the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}

// Dispatch records frame for the sensor named in frame.SensorID.
// It reports whether the frame was written. A panic while recording is
// logged and reported as a failed frame.
func (r *Registry) Dispatch(frame types.Frame) (written bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panics.Add(1)
			slog.Error("frame record panic", "sensor_id", frame.SensorID, "frame", frame.Index, "panic", rec)
			written = false
		}
	}()

	r.mu.RLock()
	sub, ok := r.sensors[frame.SensorID]
	r.mu.RUnlock()
	if !ok {
		r.dropped.Add(1)
		r.dropLog.Log(slog.LevelWarn, "frame for unknown sensor dropped",
			"sensor_id", frame.SensorID, "frame", frame.Index)
		return false
	}

	if err := r.sink.Record(frame, sub.kind, sub.session); err != nil {
		r.recordLog.Log(slog.LevelError, "frame record failed",
			"sensor_id", frame.SensorID, "kind", sub.kind, "frame", frame.Index, "error", err)
		return false
	}
	return true
}

// Dropped is the number of frames discarded for unknown sensors.
func (r *Registry) Dropped() uint64 {
	return r.dropped.Load()
}

// Panics is the number of frames whose recording panicked.
func (r *Registry) Panics() uint64 {
	return r.panics.Load()
}
