package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancePoolExhaustion(t *testing.T) {
	pool := NewInstancePool(2)
	assert.True(t, pool.IsFull())
	assert.Equal(t, 2, pool.Capacity())

	first := pool.Acquire()
	second := pool.Acquire()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, 0, pool.Available())

	assert.Nil(t, pool.Acquire(), "an exhausted pool returns nil instead of growing")

	pool.Release(first)
	assert.Equal(t, 1, pool.Available())
	assert.False(t, pool.IsFull())
	pool.Release(second)
	assert.True(t, pool.IsFull())
}

func TestInstancePoolRecyclesInstances(t *testing.T) {
	pool := NewInstancePool(1)
	first := pool.Acquire()
	pool.Release(first)
	assert.Same(t, first, pool.Acquire(), "instances are recycled, not reallocated")
}

func TestZeroCapacityPool(t *testing.T) {
	pool := NewInstancePool(0)
	assert.True(t, pool.IsFull())
	assert.Nil(t, pool.Acquire())
}
