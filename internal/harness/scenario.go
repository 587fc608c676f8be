package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description" validate:"required"`

	// Steps are executed in order against one observer.
	Steps []Step `yaml:"steps" json:"steps" validate:"required,min=1,dive"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions" json:"assertions" validate:"required,min=1,dive"`
}

// Step actions.
const (
	StepSetQueries = "set_queries"
	StepDeliver    = "deliver"
	StepFail       = "fail"
	StepOptimistic = "optimistic"
	StepSettle     = "settle"
	StepSwap       = "swap"
	StepDestroy    = "destroy"
	StepSnapshot   = "snapshot"
	StepMutate     = "mutate"
	StepRelease    = "release"
)

// Step is one scripted operation. Which fields apply depends on Action.
type Step struct {
	Action string `yaml:"action" json:"action" validate:"required,oneof=set_queries deliver fail optimistic settle swap destroy snapshot mutate release"`

	// Queries is the desired slot set (set_queries).
	Queries map[string]QueryRef `yaml:"queries,omitempty" json:"queries,omitempty" validate:"required_if=Action set_queries,dive"`

	// Query and Args select the Watch (deliver, fail). Args is also the
	// argument object of a mutation call (optimistic, mutate).
	Query string         `yaml:"query,omitempty" json:"query,omitempty" validate:"required_if=Action deliver,required_if=Action fail"`
	Args  map[string]any `yaml:"args,omitempty" json:"args,omitempty"`

	// Value is the delivered value (deliver).
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Error is the server-side error message (fail).
	Error string `yaml:"error,omitempty" json:"error,omitempty" validate:"required_if=Action fail"`

	// Journal is set on the Watch before delivering (deliver, fail).
	Journal string `yaml:"journal,omitempty" json:"journal,omitempty"`

	// Request identifies the mutation invocation (optimistic, settle).
	Request string `yaml:"request,omitempty" json:"request,omitempty" validate:"required_if=Action optimistic,required_if=Action settle"`

	// Mutation names the mutation (optimistic, mutate).
	Mutation string `yaml:"mutation,omitempty" json:"mutation,omitempty" validate:"required_if=Action optimistic,required_if=Action mutate"`

	// Writes are the optimistic cache writes (optimistic, mutate). A mutate
	// step without writes carries no optimistic update.
	Writes []Write `yaml:"writes,omitempty" json:"writes,omitempty" validate:"dive"`

	// Failed marks the mutation as rejected (settle).
	Failed bool `yaml:"failed,omitempty" json:"failed,omitempty"`

	// Initial seeds immediate values by query name on the new factory (swap).
	Initial map[string]any `yaml:"initial,omitempty" json:"initial,omitempty"`

	// FailCreate makes watch creation fail for one query name during this
	// step (set_queries, swap).
	FailCreate string `yaml:"fail_create,omitempty" json:"fail_create,omitempty"`

	// CallArgs replaces Args with the raw argument list of the call (mutate).
	CallArgs []any `yaml:"call_args,omitempty" json:"call_args,omitempty"`

	// Reject makes the server reject the mutation with this message (mutate).
	Reject string `yaml:"reject,omitempty" json:"reject,omitempty"`

	// Hold keeps the mutation in flight until the next release step (mutate).
	Hold bool `yaml:"hold,omitempty" json:"hold,omitempty"`

	// AttachTwice attaches a second optimistic update (mutate).
	AttachTwice bool `yaml:"attach_twice,omitempty" json:"attach_twice,omitempty"`

	// Label names the trace event.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// ExpectError is the error code this step must fail with.
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty" validate:"omitempty,oneof=INVALID_ARGUMENTS ALREADY_SPECIFIED MISUSE_AS_EVENT_HANDLER WATCH_CREATE_FAILED DESTROYED"`
}

// QueryRef names a query and its arguments.
type QueryRef struct {
	Name string         `yaml:"name" json:"name" validate:"required"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// Write is one optimistic cache write.
type Write struct {
	Query string         `yaml:"query" json:"query" validate:"required"`
	Args  map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
	Value any            `yaml:"value" json:"value"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of snapshot, notifications, watches_created,
	// active_callbacks, mutations_sent.
	Type string `yaml:"type" json:"type" validate:"required,oneof=snapshot notifications watches_created active_callbacks mutations_sent"`

	// Expect is the expected snapshot (snapshot). Omitted means empty.
	Expect map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Count is the expected number (notifications, watches_created,
	// active_callbacks, mutations_sent).
	Count int `yaml:"count,omitempty" json:"count,omitempty" validate:"gte=0"`

	// Query restricts active_callbacks to one query name.
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
}

// Assertion type constants.
const (
	AssertSnapshot        = "snapshot"
	AssertNotifications   = "notifications"
	AssertWatchesCreated  = "watches_created"
	AssertActiveCallbacks = "active_callbacks"
	AssertMutationsSent   = "mutations_sent"
)

// scenarioValidate checks struct tags on scenarios.
var scenarioValidate = validator.New()

// Validate checks that required fields are present and consistent.
func (s *Scenario) Validate() error {
	return scenarioValidate.Struct(s)
}

// LoadScenario reads and parses a scenario file. Files ending in .cue are
// evaluated as CUE; everything else is parsed as YAML.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// parseYAML decodes a scenario with strict field validation (catches typos
// like "assertion:" vs "assertions:").
func parseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// IsScenarioFile reports whether path has a scenario file extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}
