package ingest

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"simcam-go/internal/types"
)

// ErrIgnored marks a well-formed message of a type the pipeline does not use.
var ErrIgnored = errors.New("ignored message type")

// DecodeMessage parses one CBOR bridge message.
func DecodeMessage(msg []byte) (types.RawMessage, error) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return types.RawMessage{}, fmt.Errorf("cbor: %w", err)
	}

	msgType, _ := payload["type"].(string)
	sensorID, err := toSensorID(payload["sensor_id"])
	if err != nil {
		return types.RawMessage{}, err
	}

	switch msgType {
	case types.MessageRegister:
		kind, _ := payload["sensor_kind"].(string)
		if kind == "" {
			return types.RawMessage{}, errors.New("register without sensor_kind")
		}
		session, _ := payload["session"].(string)
		return types.RawMessage{
			Type:     msgType,
			SensorID: sensorID,
			Register: &types.Registration{
				SensorID: sensorID,
				Kind:     types.SensorKind(kind),
				Session:  session,
			},
		}, nil
	case types.MessageTeardown:
		return types.RawMessage{Type: msgType, SensorID: sensorID}, nil
	case types.MessageImage:
		frame, err := decodeImage(payload)
		if err != nil {
			return types.RawMessage{}, err
		}
		frame.SensorID = sensorID
		return types.RawMessage{Type: msgType, SensorID: sensorID, Image: &frame}, nil
	default:
		return types.RawMessage{}, fmt.Errorf("%w %q", ErrIgnored, msgType)
	}
}

func decodeImage(payload map[string]any) (types.Frame, error) {
	index, err := toInt(payload["frame"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid frame: %w", err)
	}
	width, err := toInt(payload["width"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid width: %w", err)
	}
	height, err := toInt(payload["height"])
	if err != nil {
		return types.Frame{}, fmt.Errorf("invalid height: %w", err)
	}
	data, ok := payload["data"].([]byte)
	if !ok {
		return types.Frame{}, fmt.Errorf("invalid data type %T", payload["data"])
	}
	var ts float64
	if v, ok := payload["timestamp"]; ok {
		if ts, err = toFloat(v); err != nil {
			return types.Frame{}, fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	frame := types.Frame{
		Index:     index,
		Timestamp: ts,
		Width:     width,
		Height:    height,
		Payload:   data,
	}
	if err := frame.CheckPayload(); err != nil {
		return types.Frame{}, err
	}
	return frame, nil
}

// Simulator actor ids arrive as integers; everything downstream keys on strings.
func toSensorID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", errors.New("empty sensor_id")
		}
		return id, nil
	case nil:
		return "", errors.New("missing sensor_id")
	default:
		n, err := toInt(v)
		if err != nil {
			return "", fmt.Errorf("invalid sensor_id: %w", err)
		}
		return fmt.Sprintf("%d", n), nil
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}
