// Package types defines the shared configuration model for benchmark files.
package types

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "10s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Benchmark is the top-level document of a benchmark YAML file.
type Benchmark struct {
	Name     string        `yaml:"name"`
	Phases   []PhaseConfig `yaml:"phases"`
	Scenario Scenario      `yaml:"scenario"`
}

// PhaseConfig describes one phase of the run. Phases execute sequentially
// and share the benchmark's single scenario.
type PhaseConfig struct {
	Name string `yaml:"name"`
	// Sessions is the number of simulated clients started at once.
	Sessions int `yaml:"sessions"`
	// Threads is the number of executor threads sessions are spread over.
	Threads int `yaml:"threads"`
	// Duration terminates the phase after the given time even if sessions
	// are still running; zero means run to completion.
	Duration Duration `yaml:"duration,omitempty"`
	// SharedResources groups phases that may reuse each other's sessions.
	SharedResources string `yaml:"shared_resources"`
}

// Scenario describes the sequence graph every session executes.
type Scenario struct {
	IntVars          []string         `yaml:"int_vars"`
	ObjectVars       []string         `yaml:"object_vars"`
	InitialSequences []string         `yaml:"initial_sequences"`
	Sequences        []SequenceConfig `yaml:"sequences"`
}

// SequenceConfig is one named sequence definition.
type SequenceConfig struct {
	Name string `yaml:"name"`
	// Concurrency is the maximum number of simultaneous instances; zero
	// means the sequence cannot overlap with itself.
	Concurrency int `yaml:"concurrency"`
	// Steps are single-key maps: the key selects the step type, the value
	// holds its parameters.
	Steps []map[string]map[string]any `yaml:"steps"`
}
