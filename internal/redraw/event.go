// Package redraw decodes legacy redraw batches and routes them to the
// screen. Batches arrive as loosely typed trees whose leaf types
// depend on the decoder that produced them, so every value goes
// through the coercions below before use.
package redraw

import (
	"fmt"

	"github.com/damianesteban/veonim/internal/screen"
)

func asList(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt accepts the integer encodings produced by both msgpack and
// JSON decoding.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// asColor reads a packed 24-bit color. Anything negative or
// non-numeric is the no-color sentinel.
func asColor(v any) screen.RGB {
	n, ok := asInt(v)
	if !ok || n < 0 {
		return screen.NoColor
	}
	return screen.RGB(n)
}

// asMap normalizes the two map shapes decoders hand us.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := asString(k)
			if !ok {
				continue
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}

func intArg(tuple []any, i int) (int, error) {
	if i >= len(tuple) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	n, ok := asInt(tuple[i])
	if !ok {
		return 0, fmt.Errorf("argument %d is %T, not a number", i, tuple[i])
	}
	return n, nil
}

func stringArg(tuple []any, i int) (string, error) {
	if i >= len(tuple) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := asString(tuple[i])
	if !ok {
		return "", fmt.Errorf("argument %d is %T, not a string", i, tuple[i])
	}
	return s, nil
}

func mapBool(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	b, _ := asBool(v)
	return b
}

func mapColor(m map[string]any, key string) screen.RGB {
	v, ok := m[key]
	if !ok {
		return screen.NoColor
	}
	return asColor(v)
}

func mapInt(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	n, _ := asInt(v)
	return n
}

func mapString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := asString(v)
	return s
}
