package harness

// TraceEvent records the observable state after one step.
type TraceEvent struct {
	// Step is the zero-based index of the step in the scenario.
	Step int `json:"step"`

	Action string `json:"action"`
	Label  string `json:"label,omitempty"`

	// Notifications is the number of listener notifications the step caused.
	Notifications int `json:"notifications"`

	// Snapshot is the slot snapshot after the step. Failed queries appear
	// as {"error": message}.
	Snapshot map[string]any `json:"snapshot"`

	// Error is the error code the step returned, if any.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as scripted and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Notifications is the total number of listener notifications.
	Notifications int `json:"notifications"`

	// WatchesCreated counts CreateWatch calls across every factory.
	WatchesCreated int `json:"watches_created"`

	// MutationsSent counts requests that reached the mutation sender.
	MutationsSent int `json:"mutations_sent"`

	// ActiveCallbacks maps query names to live Watch callbacks at the end.
	ActiveCallbacks map[string]int `json:"active_callbacks"`

	// Final is the slot snapshot after the last step.
	Final map[string]any `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:            true,
		Trace:           []TraceEvent{},
		Errors:          []string{},
		ActiveCallbacks: make(map[string]int),
		Final:           make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TotalActiveCallbacks sums ActiveCallbacks over every query.
func (r *Result) TotalActiveCallbacks() int {
	total := 0
	for _, n := range r.ActiveCallbacks {
		total += n
	}
	return total
}

// toCanonical converts the event to plain values for canonical JSON.
func (e TraceEvent) toCanonical() map[string]any {
	m := map[string]any{
		"step":          e.Step,
		"action":        e.Action,
		"notifications": e.Notifications,
		"snapshot":      e.Snapshot,
	}
	if e.Label != "" {
		m["label"] = e.Label
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}
