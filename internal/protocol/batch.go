package protocol

import (
	"encoding/json"
	"fmt"
)

// EncodeBatch converts a decoded redraw batch into its wire form. The
// editor transport hands batches over as nested lists of loosely typed
// values; JSON carries them to viewers unchanged.
func EncodeBatch(batch []any) (json.RawMessage, error) {
	data, err := json.Marshal(normalize(batch))
	if err != nil {
		return nil, fmt.Errorf("encode redraw batch: %w", err)
	}
	return data, nil
}

// DecodeBatch parses a wire batch back into nested lists.
func DecodeBatch(raw json.RawMessage) ([]any, error) {
	var batch []any
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("decode redraw batch: %w", err)
	}
	return batch, nil
}

// normalize rewrites decoder-specific container types into JSON's so
// msgpack-decoded batches marshal cleanly.
func normalize(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []byte:
		return string(x)
	default:
		return v
	}
}
