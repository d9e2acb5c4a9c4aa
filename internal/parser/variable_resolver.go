package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// variablePattern matches references like ${env:BASE_URL} or ${rate}
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// VariableResolver substitutes references inside step parameters so a
// benchmark file can be parameterized per run without editing it.
type VariableResolver struct {
	// Variables holds values supplied on the command line or by the API.
	Variables map[string]any
}

// NewVariableResolver creates an empty VariableResolver.
func NewVariableResolver() *VariableResolver {
	return &VariableResolver{
		Variables: make(map[string]any),
	}
}

// WithVariables sets the variables map.
func (r *VariableResolver) WithVariables(variables map[string]any) *VariableResolver {
	r.Variables = variables
	return r
}

// Resolve resolves a single reference.
// Supported formats:
//   - ${env:VAR_NAME} - resolves from environment variables
//   - ${var:name} - resolves from run variables
//   - ${name} - resolves from run variables (shorthand)
func (r *VariableResolver) Resolve(ref string) (any, error) {
	if strings.Contains(ref, ":") {
		parts := strings.SplitN(ref, ":", 2)
		prefix := strings.ToLower(parts[0])
		key := parts[1]

		switch prefix {
		case "env":
			value, exists := os.LookupEnv(key)
			if !exists {
				return nil, NewVariableResolutionError(ref, fmt.Sprintf("environment variable '%s' not found", key), nil)
			}
			return value, nil

		case "var":
			value, exists := r.Variables[key]
			if !exists {
				return nil, NewVariableResolutionError(ref, fmt.Sprintf("variable '%s' not found", key), nil)
			}
			return value, nil

		default:
			return nil, NewVariableResolutionError(ref, fmt.Sprintf("unknown variable prefix '%s'", prefix), nil)
		}
	}

	value, exists := r.Variables[ref]
	if !exists {
		return nil, NewVariableResolutionError(ref, fmt.Sprintf("variable '%s' not found", ref), nil)
	}
	return value, nil
}

// ResolveString resolves all references in a string. A string that is
// exactly one reference keeps the resolved value's type via ResolveValue.
func (r *VariableResolver) ResolveString(s string) (string, error) {
	var lastErr error
	result := variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := match[2 : len(match)-1]
		value, err := r.Resolve(ref)
		if err != nil {
			lastErr = err
			return match
		}
		return fmt.Sprintf("%v", value)
	})

	if lastErr != nil {
		return "", lastErr
	}
	return result, nil
}

// ResolveValue resolves references inside an arbitrary YAML value. A string
// consisting of a single reference resolves to the referenced value itself,
// so integers and maps survive substitution without stringification.
func (r *VariableResolver) ResolveValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if !HasVariableReferences(val) {
			return val, nil
		}
		if m := variablePattern.FindStringSubmatch(val); m != nil && m[0] == val {
			return r.Resolve(m[1])
		}
		return r.ResolveString(val)

	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := r.ResolveValue(item)
			if err != nil {
				return nil, err
			}
			result[k] = resolved
		}
		return result, nil

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			resolved, err := r.ResolveValue(item)
			if err != nil {
				return nil, err
			}
			result[i] = resolved
		}
		return result, nil

	default:
		return v, nil
	}
}

// HasVariableReferences checks if a string contains variable references.
func HasVariableReferences(s string) bool {
	return variablePattern.MatchString(s)
}
