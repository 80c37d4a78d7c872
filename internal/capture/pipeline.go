// Package capture routes bridge messages to the frame sink.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"simcam-go/internal/sink"
	"simcam-go/internal/types"
)

// Pipeline applies register/teardown messages to a sink registry and hands
// image frames to a fixed set of writer goroutines.
type Pipeline struct {
	registry *sink.Registry
	session  string
	workers  int
	events   chan<- any

	received  atomic.Uint64
	lastFrame atomic.Int64
	pending   sync.WaitGroup
}

// NewPipeline returns a pipeline writing through registry. session is used
// for sensors that register without one. events may be nil; sends to it
// never block.
func NewPipeline(registry *sink.Registry, session string, workers int, events chan<- any) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		registry: registry,
		session:  session,
		workers:  workers,
		events:   events,
	}
}

// Stats is a point-in-time view of capture counters.
type Stats struct {
	Received  uint64 `json:"frames_received_total"`
	Dropped   uint64 `json:"frames_dropped_total"`
	Sensors   int    `json:"sensors"`
	LastFrame string `json:"last_frame,omitempty"`
}

// Stats returns the current capture counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Received: p.received.Load(),
		Dropped:  p.registry.Dropped(),
		Sensors:  p.registry.Len(),
	}
	if ns := p.lastFrame.Load(); ns != 0 {
		s.LastFrame = time.Unix(0, ns).Format(time.RFC3339)
	}
	return s
}

// Run consumes messages until the channel closes or ctx is done, then waits
// for queued frames to be written.
func (p *Pipeline) Run(ctx context.Context, messages <-chan types.RawMessage) error {
	frames := make(chan types.Frame, 128)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			for frame := range frames {
				p.registry.Dispatch(frame)
				p.pending.Done()
			}
		}()
	}
	defer func() {
		close(frames)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if !p.handle(ctx, msg, frames) {
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, msg types.RawMessage, frames chan<- types.Frame) bool {
	switch msg.Type {
	case types.MessageRegister:
		if msg.Register == nil {
			return true
		}
		reg := *msg.Register
		if reg.Session == "" {
			reg.Session = p.session
		}
		if err := types.CheckSession(reg.Session); err != nil {
			slog.Warn("sensor registration rejected", "sensor_id", reg.SensorID, "error", err)
			p.emit(map[string]any{"type": "sensor_rejected", "sensor_id": reg.SensorID, "session": reg.Session})
			return true
		}
		p.registry.Register(reg.SensorID, reg.Kind, reg.Session)
		p.emit(map[string]any{"type": "sensor_registered", "sensor_id": reg.SensorID, "kind": reg.Kind, "session": reg.Session})
	case types.MessageTeardown:
		// Frames already queued for this sensor are written first.
		p.pending.Wait()
		p.registry.Unregister(msg.SensorID)
		p.emit(map[string]any{"type": "sensor_torn_down", "sensor_id": msg.SensorID})
	case types.MessageImage:
		if msg.Image == nil {
			return true
		}
		p.received.Add(1)
		p.lastFrame.Store(time.Now().UnixNano())
		p.pending.Add(1)
		select {
		case <-ctx.Done():
			p.pending.Done()
			return false
		case frames <- *msg.Image:
		}
	default:
		slog.Debug("capture ignoring message", "type", msg.Type)
	}
	return true
}

func (p *Pipeline) emit(event any) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- event:
	default:
	}
}

// Timestamp is the default session key for a capture started now.
func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
