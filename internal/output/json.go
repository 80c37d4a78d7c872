package output

import (
	"encoding/base64"
	"fmt"
)

// NormalizeJSONValue rewrites CBOR-decoded values so encoding/json accepts
// them: map[any]any keys become strings and byte strings are summarized.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case []byte:
		if len(v) <= 16 {
			return base64.StdEncoding.EncodeToString(v)
		}
		return fmt.Sprintf("<%d bytes>", len(v))
	default:
		return v
	}
}
