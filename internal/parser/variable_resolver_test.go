package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFromVariables(t *testing.T) {
	r := NewVariableResolver().WithVariables(map[string]any{
		"host": "localhost",
		"port": 8080,
	})

	v, err := r.Resolve("host")
	require.NoError(t, err)
	assert.Equal(t, "localhost", v)

	v, err = r.Resolve("var:port")
	require.NoError(t, err)
	assert.Equal(t, 8080, v)

	_, err = r.Resolve("missing")
	assert.Error(t, err)
}

func TestResolveFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_ENGINE_TEST_URL", "http://example.com")

	r := NewVariableResolver()
	v, err := r.Resolve("env:SESSION_ENGINE_TEST_URL")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", v)

	_, err = r.Resolve("env:SESSION_ENGINE_TEST_MISSING")
	assert.Error(t, err)

	_, err = r.Resolve("vault:whatever")
	assert.ErrorContains(t, err, "unknown variable prefix")
}

func TestResolveString(t *testing.T) {
	r := NewVariableResolver().WithVariables(map[string]any{
		"host": "localhost",
		"port": 8080,
	})

	s, err := r.ResolveString("http://${host}:${port}/api")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", s)

	_, err = r.ResolveString("http://${missing}/")
	assert.Error(t, err)
}

func TestResolveValueKeepsTypes(t *testing.T) {
	r := NewVariableResolver().WithVariables(map[string]any{
		"count": 3,
		"tags":  []any{"a", "b"},
	})

	v, err := r.ResolveValue("${count}")
	require.NoError(t, err)
	assert.Equal(t, 3, v, "whole-string references keep the referenced type")

	v, err = r.ResolveValue("${tags}")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)

	v, err = r.ResolveValue(map[string]any{
		"nested": []any{"${count}", "plain"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"nested": []any{3, "plain"}}, v)

	v, err = r.ResolveValue(42)
	require.NoError(t, err)
	assert.Equal(t, 42, v, "non-strings pass through untouched")
}

func TestHasVariableReferences(t *testing.T) {
	assert.True(t, HasVariableReferences("${a}"))
	assert.True(t, HasVariableReferences("x ${a} y"))
	assert.False(t, HasVariableReferences("plain"))
	assert.False(t, HasVariableReferences("$a"))
}
