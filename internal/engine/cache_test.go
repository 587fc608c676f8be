package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Result
		want bool
	}{
		{"both unloaded", Result{}, Result{}, true},
		{"loaded vs unloaded", Result{Loaded: true}, Result{}, false},
		{"structurally equal values", Result{Value: map[string]any{"a": 1, "b": 2}, Loaded: true},
			Result{Value: map[string]any{"b": 2.0, "a": 1}, Loaded: true}, true},
		{"different values", Result{Value: "x", Loaded: true}, Result{Value: "y", Loaded: true}, false},
		{"same error message", Result{Err: errors.New("e"), Loaded: true}, Result{Err: errors.New("e"), Loaded: true}, true},
		{"error vs value", Result{Err: errors.New("e"), Loaded: true}, Result{Value: "e", Loaded: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestResult_Visible(t *testing.T) {
	boom := errors.New("boom")
	assert.Nil(t, Result{Value: "ignored"}.Visible())
	assert.Equal(t, boom, Result{Err: boom, Loaded: true}.Visible())
	assert.Equal(t, "v", Result{Value: "v", Loaded: true}.Visible())
}

func TestResultCache_ByNameOrdersByArgs(t *testing.T) {
	c := newResultCache()
	c.put("k2", &entry{name: "list", argsJSON: `{"page":2}`})
	c.put("k1", &entry{name: "list", argsJSON: `{"page":1}`})
	c.put("k3", &entry{name: "other", argsJSON: `{}`})

	got := c.byName("list")
	assert.Len(t, got, 2)
	assert.Equal(t, `{"page":1}`, got[0].argsJSON)
	assert.Equal(t, `{"page":2}`, got[1].argsJSON)

	c.clear()
	assert.Equal(t, 0, c.len())
}
