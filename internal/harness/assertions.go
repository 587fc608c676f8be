package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/querysync/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		name := event.Action
		if event.Label != "" {
			name += " (" + event.Label + ")"
		}
		fmt.Fprintf(&buf, "  [%d] %s notifications=%d snapshot=%s", event.Step, name, event.Notifications, render(event.Snapshot))
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%s", event.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// assertSnapshot checks the final slot values. The slot sets must match
// exactly; values compare structurally.
func assertSnapshot(result *Result, assertion Assertion) error {
	expected := assertion.Expect
	if expected == nil {
		expected = map[string]any{}
	}

	mismatch := len(expected) != len(result.Final)
	if !mismatch {
		for slot, want := range expected {
			got, ok := result.Final[slot]
			if !ok || !value.Equal(want, got) {
				mismatch = true
				break
			}
		}
	}
	if !mismatch {
		return nil
	}

	return &AssertionError{
		Type:     AssertSnapshot,
		Expected: render(expected),
		Actual:   render(result.Final),
		Trace:    result.Trace,
	}
}

// assertCount compares one counter against the expected count.
func assertCount(result *Result, assertion Assertion, actual int) error {
	if actual == assertion.Count {
		return nil
	}
	expected := fmt.Sprintf("%d", assertion.Count)
	if assertion.Query != "" {
		expected += " for " + assertion.Query
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%d", actual),
		Trace:    result.Trace,
	}
}

// render formats a value as canonical JSON, falling back to %v.
func render(v any) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSnapshot:
			err = assertSnapshot(result, assertion)
		case AssertNotifications:
			err = assertCount(result, assertion, result.Notifications)
		case AssertWatchesCreated:
			err = assertCount(result, assertion, result.WatchesCreated)
		case AssertActiveCallbacks:
			actual := result.TotalActiveCallbacks()
			if assertion.Query != "" {
				actual = result.ActiveCallbacks[assertion.Query]
			}
			err = assertCount(result, assertion, actual)
		case AssertMutationsSent:
			err = assertCount(result, assertion, result.MutationsSent)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
