package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
steps:
  - action: set_queries
    queries:
      q: { name: getItem, args: { id: 7 } }
  - action: deliver
    query: getItem
    args: { id: 7 }
    value: { title: widget }
assertions:
  - type: snapshot
    expect: { q: { title: widget } }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, StepSetQueries, scenario.Steps[0].Action)
	assert.Equal(t, "getItem", scenario.Steps[0].Queries["q"].Name)
	assert.Equal(t, 7, scenario.Steps[0].Queries["q"].Args["id"])
	assert.Equal(t, map[string]any{"title": "widget"}, scenario.Steps[1].Value)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertSnapshot, scenario.Assertions[0].Type)
}

func TestLoadScenario_CUEFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/destroy.cue")
	require.NoError(t, err)

	assert.Equal(t, "destroy", scenario.Name)
	require.Len(t, scenario.Steps, 4)
	assert.Equal(t, StepDestroy, scenario.Steps[2].Action)
	assert.Equal(t, "DESTROYED", scenario.Steps[3].ExpectError)
	assert.Len(t, scenario.Assertions, 4)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "bad.yaml", "name: [unterminated\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"typo.yaml", "failed to parse YAML"},
		{"bad_action.yaml", "invalid scenario"},
		{"missing_request.yaml", "invalid scenario"},
		{"unknown_field.cue", "unknown scenario field"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := LoadScenario(filepath.Join("testdata", "invalid", tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MalformedCUE(t *testing.T) {
	path := writeScenario(t, "bad.cue", "name: \"x\"\nname: \"y\"\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestScenarioValidate_RequiredFields(t *testing.T) {
	s := &Scenario{}
	require.Error(t, s.Validate())

	s = &Scenario{
		Name:        "ok",
		Description: "minimal",
		Steps:       []Step{{Action: StepSnapshot}},
		Assertions:  []Assertion{{Type: AssertNotifications}},
	}
	require.NoError(t, s.Validate())
}

func TestScenarioValidate_ConditionalFields(t *testing.T) {
	base := func(step Step) *Scenario {
		return &Scenario{
			Name:        "conditional",
			Description: "conditional fields",
			Steps:       []Step{step},
			Assertions:  []Assertion{{Type: AssertNotifications}},
		}
	}

	assert.Error(t, base(Step{Action: StepSetQueries}).Validate(), "set_queries needs queries")
	assert.NoError(t, base(Step{Action: StepSetQueries, Queries: map[string]QueryRef{}}).Validate())
	assert.Error(t, base(Step{Action: StepDeliver}).Validate(), "deliver needs query")
	assert.Error(t, base(Step{Action: StepFail, Query: "q"}).Validate(), "fail needs error")
	assert.NoError(t, base(Step{Action: StepFail, Query: "q", Error: "boom"}).Validate())
	assert.Error(t, base(Step{Action: StepSettle}).Validate(), "settle needs request")
	assert.Error(t, base(Step{Action: StepSnapshot, ExpectError: "NOPE"}).Validate())
	assert.Error(t, base(Step{
		Action:  StepSetQueries,
		Queries: map[string]QueryRef{"q": {}},
	}).Validate(), "query ref needs a name")
}

func TestIsScenarioFile(t *testing.T) {
	assert.True(t, IsScenarioFile("a.yaml"))
	assert.True(t, IsScenarioFile("a.YML"))
	assert.True(t, IsScenarioFile("a.cue"))
	assert.False(t, IsScenarioFile("a.golden"))
	assert.False(t, IsScenarioFile("README"))
}
