package parser

import (
	"fmt"

	"yqhp/session-engine/internal/session"
	"yqhp/session-engine/internal/steps"
	"yqhp/session-engine/pkg/types"
)

// BuildScenario compiles a parsed scenario definition into the executable
// sequence graph sessions run against. Step IDs are allocated here so
// statistics cells are stable across sessions of the same benchmark.
func BuildScenario(def *types.Scenario, registry *steps.Registry) (*session.Scenario, error) {
	scenario := session.NewScenario(def.ObjectVars, def.IntVars)
	bc := &steps.BuildContext{}

	for _, seqDef := range def.Sequences {
		built := make([]session.Step, 0, len(seqDef.Steps))
		for ti, stepDef := range seqDef.Steps {
			for stepType, params := range stepDef {
				if params == nil {
					params = map[string]any{}
				}
				step, err := registry.Build(stepType, params, bc)
				if err != nil {
					return nil, fmt.Errorf("sequence %q step %d: %w", seqDef.Name, ti, err)
				}
				built = append(built, step)
			}
		}
		scenario.AddSequence(seqDef.Name, seqDef.Concurrency, built)
	}

	for _, name := range def.InitialSequences {
		seq := scenario.Sequence(name)
		if seq == nil {
			return nil, fmt.Errorf("initial sequence %q is not defined", name)
		}
		scenario.MarkInitial(seq)
	}

	return scenario, nil
}
