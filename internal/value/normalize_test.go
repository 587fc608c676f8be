package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"int", 7, Int(7)},
		{"uint8", uint8(7), Int(7)},
		{"float integral", 7.0, Int(7)},
		{"float fraction", 7.25, Float(7.25)},
		{"float32", float32(0.5), Float(0.5)},
		{"json int", json.Number("12"), Int(12)},
		{"json float", json.Number("1.5"), Float(1.5)},
		{"json exp integral", json.Number("1e2"), Int(100)},
		{"beyond safe integer", float64(1 << 60), Float(float64(1 << 60))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeRejectsCycles(t *testing.T) {
	t.Run("map", func(t *testing.T) {
		m := map[string]any{}
		m["self"] = m

		_, err := Normalize(m)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArguments)

		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, CodeInvalidArguments, verr.Code)
		assert.Equal(t, "$.self", verr.Path)
	})

	t.Run("slice", func(t *testing.T) {
		s := make([]any, 1)
		s[0] = s

		_, err := Normalize(s)
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("nested map", func(t *testing.T) {
		outer := map[string]any{}
		inner := map[string]any{"back": outer}
		outer["inner"] = inner

		_, err := Normalize(outer)
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})
}

func TestNormalizeSharedNonCyclicReference(t *testing.T) {
	shared := map[string]any{"x": 1}
	args := map[string]any{"a": shared, "b": shared}

	got, err := Normalize(args)
	require.NoError(t, err)
	assert.Equal(t, Object{
		"a": Object{"x": Int(1)},
		"b": Object{"x": Int(1)},
	}, got)
}

func TestNormalizeUnsupportedKinds(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"func", func() {}},
		{"chan", make(chan int)},
		{"complex", complex(1, 2)},
		{"struct", struct{ A int }{A: 1}},
		{"int keyed map", map[int]string{1: "a"}},
		{"overflowing uint", uint64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.input)
			assert.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestNormalizePointers(t *testing.T) {
	n := 5
	got, err := Normalize(map[string]any{"n": &n, "nil": (*int)(nil)})
	require.NoError(t, err)
	assert.Equal(t, Object{"n": Int(5), "nil": Null{}}, got)
}

func TestNormalizeArgsNil(t *testing.T) {
	got, err := NormalizeArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, Object{}, got)
}

func TestToAnyRoundTrip(t *testing.T) {
	v, err := Normalize(map[string]any{"list": []any{1, "two", 2.5, nil, false}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"list": []any{int64(1), "two", 2.5, nil, false},
	}, ToAny(v))
}
