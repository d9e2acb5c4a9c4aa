// Package parser loads benchmark YAML files and turns their scenario
// definitions into executable sequence graphs.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"yqhp/session-engine/pkg/types"
)

// BenchmarkParser parses YAML benchmark definitions.
type BenchmarkParser struct {
	resolver *VariableResolver
}

// NewBenchmarkParser creates a new BenchmarkParser.
func NewBenchmarkParser() *BenchmarkParser {
	return &BenchmarkParser{
		resolver: NewVariableResolver(),
	}
}

// WithResolver sets a custom variable resolver.
func (p *BenchmarkParser) WithResolver(resolver *VariableResolver) *BenchmarkParser {
	p.resolver = resolver
	return p
}

// Parse parses a benchmark definition from bytes.
func (p *BenchmarkParser) Parse(data []byte) (*types.Benchmark, error) {
	var benchmark types.Benchmark

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode: error on unknown fields

	if err := decoder.Decode(&benchmark); err != nil {
		return nil, p.wrapYAMLError(err)
	}

	if err := p.resolveVariables(&benchmark); err != nil {
		return nil, err
	}

	if err := p.validate(&benchmark); err != nil {
		return nil, err
	}

	return &benchmark, nil
}

// ParseFile parses a benchmark definition from a file.
func (p *BenchmarkParser) ParseFile(path string) (*types.Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseError(0, 0, fmt.Sprintf("failed to read file: %s", path), err)
	}
	return p.Parse(data)
}

// wrapYAMLError converts a YAML error to a ParseError with line information.
func (p *BenchmarkParser) wrapYAMLError(err error) error {
	errStr := err.Error()
	line, column := extractLineColumn(errStr)
	return NewParseError(line, column, cleanYAMLErrorMessage(errStr), err)
}

// extractLineColumn attempts to extract line and column from YAML error message.
func extractLineColumn(errStr string) (int, int) {
	var line, column int
	if idx := strings.Index(errStr, "line "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "line %d", &line)
	}
	if idx := strings.Index(errStr, "column "); idx != -1 {
		fmt.Sscanf(errStr[idx:], "column %d", &column)
	}
	return line, column
}

// cleanYAMLErrorMessage creates a cleaner error message.
func cleanYAMLErrorMessage(errStr string) string {
	errStr = strings.TrimPrefix(errStr, "yaml: ")
	if len(errStr) > 0 {
		errStr = strings.ToUpper(errStr[:1]) + errStr[1:]
	}
	return errStr
}

// resolveVariables substitutes ${...} references in every step's parameters.
func (p *BenchmarkParser) resolveVariables(benchmark *types.Benchmark) error {
	for si := range benchmark.Scenario.Sequences {
		seq := &benchmark.Scenario.Sequences[si]
		for ti, step := range seq.Steps {
			for stepType, params := range step {
				if params == nil {
					continue
				}
				resolved, err := p.resolver.ResolveValue(map[string]any(params))
				if err != nil {
					return err
				}
				seq.Steps[ti][stepType] = resolved.(map[string]any)
			}
		}
	}
	return nil
}

// validate validates a parsed benchmark.
func (p *BenchmarkParser) validate(benchmark *types.Benchmark) error {
	if benchmark.Name == "" {
		return NewValidationError("name", "benchmark name is required")
	}

	if len(benchmark.Phases) == 0 {
		return NewValidationError("phases", "benchmark must have at least one phase")
	}

	phaseNames := make(map[string]bool)
	for i, phase := range benchmark.Phases {
		path := fmt.Sprintf("phases[%d]", i)
		if phase.Name == "" {
			return NewValidationError(path+".name", "phase name is required")
		}
		if phaseNames[phase.Name] {
			return NewValidationError(path+".name", fmt.Sprintf("duplicate phase name: %s", phase.Name))
		}
		phaseNames[phase.Name] = true
		if phase.Sessions <= 0 {
			return NewValidationError(path+".sessions", "phase must run at least one session")
		}
		if phase.Threads < 0 {
			return NewValidationError(path+".threads", "thread count cannot be negative")
		}
	}

	return p.validateScenario(&benchmark.Scenario)
}

// validateScenario validates the sequence graph.
func (p *BenchmarkParser) validateScenario(scenario *types.Scenario) error {
	if len(scenario.Sequences) == 0 {
		return NewValidationError("scenario.sequences", "scenario must have at least one sequence")
	}

	seqNames := make(map[string]bool)
	for i, seq := range scenario.Sequences {
		path := fmt.Sprintf("scenario.sequences[%d]", i)
		if seq.Name == "" {
			return NewValidationError(path+".name", "sequence name is required")
		}
		if seqNames[seq.Name] {
			return NewValidationError(path+".name", fmt.Sprintf("duplicate sequence name: %s", seq.Name))
		}
		seqNames[seq.Name] = true
		if seq.Concurrency < 0 {
			return NewValidationError(path+".concurrency", "concurrency cannot be negative")
		}
		if len(seq.Steps) == 0 {
			return NewValidationError(path+".steps", "sequence must have at least one step")
		}
		for ti, step := range seq.Steps {
			if len(step) != 1 {
				return NewValidationError(fmt.Sprintf("%s.steps[%d]", path, ti),
					"each step must be a single-key map selecting the step type")
			}
		}
	}

	if len(scenario.InitialSequences) == 0 {
		return NewValidationError("scenario.initial_sequences", "scenario must name at least one initial sequence")
	}
	for i, name := range scenario.InitialSequences {
		if !seqNames[name] {
			return NewValidationError(fmt.Sprintf("scenario.initial_sequences[%d]", i),
				fmt.Sprintf("unknown sequence: %s", name))
		}
	}

	return nil
}
