package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"simcam-go/internal/logutil"
	"simcam-go/internal/types"
)

// RawRecorder receives every message payload before it is decoded.
type RawRecorder interface {
	Record(payload []byte) error
}

const recvTimeout = 500 * time.Millisecond

var decodeFailures atomic.Uint64

// DecodeFailures is the number of bridge messages rejected since start.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

// Stream returns a channel of messages pushed by the simulator bridge.
// Expects CBOR maps shaped like:
// { "type": "image", "sensor_id": <str>, "frame": <int>, "width": <int>, "height": <int>, "data": <bytes> }
// plus "register" and "teardown" lifecycle messages.
func Stream(ctx context.Context, endpoint string) (<-chan types.RawMessage, error) {
	return StreamWithRecorder(ctx, endpoint, 1, nil)
}

// StreamWithRecorder is Stream with rate-limited error logging and an
// optional raw payload recorder.
func StreamWithRecorder(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder) (<-chan types.RawMessage, error) {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	slog.Info("ingest connected", "endpoint", endpoint)

	errLog := logutil.NewEveryN(logEvery)
	out := make(chan types.RawMessage, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				errLog.Log(slog.LevelWarn, "ingest recv error", "error", err)
				continue
			}
			if recorder != nil {
				if err := recorder.Record(msg); err != nil {
					errLog.Log(slog.LevelWarn, "raw log record failed", "error", err)
				}
			}

			raw, err := DecodeMessage(msg)
			if err != nil {
				decodeFailures.Add(1)
				errLog.Log(slog.LevelWarn, "ingest decode skipped message", "error", err)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- raw:
			}
		}
	}()

	return out, nil
}
