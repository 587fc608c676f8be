package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// Equal reports whether a and b are structurally equal JSON-like values.
// Values that cannot be canonicalized fall back to reflect.DeepEqual.
func Equal(a, b any) bool {
	ca, errA := MarshalCanonical(a)
	cb, errB := MarshalCanonical(b)
	if errA == nil && errB == nil {
		return bytes.Equal(ca, cb)
	}
	return reflect.DeepEqual(a, b)
}

// Decode parses JSON into plain Go values. Integral numbers decode as int64
// and other numbers as float64, matching what Normalize produces. Input that
// is not valid UTF-8 is rejected rather than repaired.
func Decode(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("decode value: %w: input is not valid UTF-8", ErrInvalidArguments)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return convertDecoded(raw), nil
}

func convertDecoded(v any) any {
	switch val := v.(type) {
	case json.Number:
		s := string(val)
		if !strings.ContainsAny(s, ".eE") {
			if i, err := val.Int64(); err == nil {
				return i
			}
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, elem := range val {
			val[i] = convertDecoded(elem)
		}
		return val
	case map[string]any:
		for k, elem := range val {
			val[k] = convertDecoded(elem)
		}
		return val
	default:
		return v
	}
}
