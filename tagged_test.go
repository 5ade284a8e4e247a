package goskip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagPtr_LoadDecomposed(t *testing.T) {
	var tp tagPtr[int, string]
	n := newNode[int, string](1, "one", 1)
	tp.storeComposed(n, 0)

	p, tag := tp.loadDecomposed()
	assert.Equal(t, n, p)
	assert.Equal(t, uint32(0), tag)
}

func TestTagPtr_CompareExchange(t *testing.T) {
	var tp tagPtr[int, string]
	a := newNode[int, string](1, "a", 1)
	b := newNode[int, string](2, "b", 1)
	tp.storeComposed(a, 0)

	assert.True(t, tp.compareExchange(a, b), "must succeed against the untagged current pointer")
	assert.Equal(t, b, tp.loadPtr())

	assert.False(t, tp.compareExchange(a, b), "must fail once the pointer has moved on")
}

func TestTagPtr_CompareExchangeBlockedByTag(t *testing.T) {
	var tp tagPtr[int, string]
	a := newNode[int, string](1, "a", 1)
	b := newNode[int, string](2, "b", 1)
	tp.storeComposed(a, 1)

	assert.False(t, tp.compareExchange(a, b), "a tagged edge must not be swapped as if untagged")
}

func TestTagPtr_CompareExchangeTag(t *testing.T) {
	var tp tagPtr[int, string]
	a := newNode[int, string](1, "a", 1)
	tp.storeComposed(a, 0)

	old, ok := tp.compareExchangeTag(0, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(0), old)
	assert.Equal(t, uint32(1), tp.loadTag())
	assert.Equal(t, a, tp.loadPtr(), "tagging must not touch the pointer")

	_, ok = tp.compareExchangeTag(0, 1)
	assert.False(t, ok, "retagging from a stale expected value must fail")
}
