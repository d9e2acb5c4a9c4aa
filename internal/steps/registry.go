// Package steps provides the built-in step vocabulary scenarios are made
// from, plus the factory registry the parser dispatches through.
package steps

import (
	"fmt"
	"time"

	"yqhp/session-engine/internal/session"
)

// BuildContext carries per-benchmark state through step construction,
// currently just the step ID allocator backing statistics lookups.
type BuildContext struct {
	nextID int
}

// NextStepID returns a benchmark-unique step ID.
func (b *BuildContext) NextStepID() int {
	id := b.nextID
	b.nextID++
	return id
}

// Factory builds one step from its YAML parameters.
type Factory func(params map[string]any, bc *BuildContext) (session.Step, error)

// Registry maps step type names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with all built-in steps registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("set_int", newSetIntStep)
	r.Register("add_int", newAddIntStep)
	r.Register("set", newSetObjectStep)
	r.Register("unset", newUnsetStep)
	r.Register("await_var", newAwaitVarStep)
	r.Register("log", newLogStep)
	r.Register("delay", newDelayStep)
	r.Register("stop", newStopStep)
	r.Register("fail", newFailStep)
	r.Register("restart", newRestartStep)
	r.Register("new_sequence", newNewSequenceStep)
	r.Register("script", newScriptStep)
	r.Register("json_extract", newJSONExtractStep)
	r.Register("http", newHTTPStep)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Build constructs a step of the given type.
func (r *Registry) Build(name string, params map[string]any, bc *BuildContext) (session.Step, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown step type: %s", name)
	}
	return factory(params, bc)
}

// RequiredParam fetches a typed parameter, erroring when absent or of the
// wrong type.
func RequiredParam[T any](params map[string]any, name string) (T, error) {
	var zero T
	raw, ok := params[name]
	if !ok {
		return zero, fmt.Errorf("parameter %q is required", name)
	}
	value, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("parameter %q has type %T, expected %T", name, raw, zero)
	}
	return value, nil
}

// OptionalParam fetches a typed parameter, falling back to def when absent
// or of the wrong type.
func OptionalParam[T any](params map[string]any, name string, def T) T {
	raw, ok := params[name]
	if !ok {
		return def
	}
	value, ok := raw.(T)
	if !ok {
		return def
	}
	return value
}

// IntParam fetches an integer parameter, tolerating the numeric types the
// YAML decoder may produce.
func IntParam(params map[string]any, name string) (int, error) {
	raw, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("parameter %q is required", name)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %q has type %T, expected integer", name, raw)
	}
}

// DurationParam parses a parameter like "250ms"; def is used when absent.
func DurationParam(params map[string]any, name string, def time.Duration) (time.Duration, error) {
	raw, ok := params[name]
	if !ok {
		return def, nil
	}
	str, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("parameter %q has type %T, expected duration string", name, raw)
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", name, err)
	}
	return d, nil
}

func policyParam(params map[string]any) (session.ConcurrencyPolicy, error) {
	switch OptionalParam(params, "policy", "fail") {
	case "fail":
		return session.ConcurrencyFail, nil
	case "warn":
		return session.ConcurrencyWarn, nil
	default:
		return 0, fmt.Errorf("parameter %q must be \"warn\" or \"fail\"", "policy")
	}
}
