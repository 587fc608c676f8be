package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Final = map[string]any{"a": int64(1), "b": nil, "c": map[string]any{"error": "boom"}}
	r.Notifications = 2
	r.WatchesCreated = 3
	r.ActiveCallbacks = map[string]int{"qa": 1, "qc": 1}
	r.Trace = []TraceEvent{{Step: 0, Action: StepSetQueries, Snapshot: map[string]any{"a": nil}}}
	return r
}

func TestAssertSnapshot(t *testing.T) {
	r := sampleResult()

	ok := Assertion{Type: AssertSnapshot, Expect: map[string]any{"a": 1.0, "b": nil, "c": map[string]any{"error": "boom"}}}
	assert.NoError(t, assertSnapshot(r, ok))

	wrongValue := Assertion{Type: AssertSnapshot, Expect: map[string]any{"a": 2, "b": nil, "c": map[string]any{"error": "boom"}}}
	err := assertSnapshot(r, wrongValue)
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertSnapshot, aerr.Type)
	assert.Contains(t, aerr.Actual, `"a":1`)

	missingSlot := Assertion{Type: AssertSnapshot, Expect: map[string]any{"a": 1, "b": nil}}
	assert.Error(t, assertSnapshot(r, missingSlot))
}

func TestAssertSnapshot_EmptyExpect(t *testing.T) {
	r := NewResult()
	assert.NoError(t, assertSnapshot(r, Assertion{Type: AssertSnapshot}))
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertNotifications, Count: 2},
		{Type: AssertWatchesCreated, Count: 3},
		{Type: AssertActiveCallbacks, Count: 2},
		{Type: AssertActiveCallbacks, Query: "qa", Count: 1},
		{Type: AssertActiveCallbacks, Query: "missing", Count: 0},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertNotifications, Count: 5},
		{Type: AssertActiveCallbacks, Query: "qa", Count: 2},
		{Type: "bogus"},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Expected: 5")
	assert.Contains(t, errs[1], "Expected: 2 for qa")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertNotifications,
		Expected: "1",
		Actual:   "0",
		Trace: []TraceEvent{
			{Step: 0, Action: StepSetQueries, Snapshot: map[string]any{"q": nil}},
			{Step: 1, Action: StepSnapshot, Label: "check", Snapshot: map[string]any{"q": nil}, Error: "DESTROYED"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: notifications")
	assert.Contains(t, msg, `[0] set_queries notifications=0 snapshot={"q":null}`)
	assert.Contains(t, msg, "[1] snapshot (check)")
	assert.Contains(t, msg, "error=DESTROYED")
}
