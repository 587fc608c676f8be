package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// parseCUE evaluates a CUE scenario file. The file must evaluate to a
// single concrete struct with the same fields as the YAML format.
func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE scenario is not concrete: %w", err)
	}

	if err := checkCUEFields(v); err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// knownTopLevel lists the fields a scenario may declare.
var knownTopLevel = map[string]bool{
	"name":        true,
	"description": true,
	"steps":       true,
	"assertions":  true,
}

// checkCUEFields rejects unknown top-level fields, matching the strictness
// of the YAML decoder.
func checkCUEFields(v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return fmt.Errorf("CUE scenario must be a struct: %w", err)
	}
	for iter.Next() {
		label := iter.Selector().String()
		if !knownTopLevel[label] {
			return fmt.Errorf("unknown scenario field %q", label)
		}
	}
	return nil
}
