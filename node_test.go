package goskip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_HeightAndRefs(t *testing.T) {
	n := newNode[int, string](1, "one", 3)
	assert.Equal(t, 3, n.height())
	assert.Equal(t, 0, n.refs())
	assert.False(t, n.removed())

	assert.Equal(t, 1, n.addRef())
	assert.Equal(t, 1, n.refs())

	ok := n.tryAddRef()
	require.True(t, ok)
	assert.Equal(t, 2, n.refs())

	assert.Equal(t, 1, n.subRef())
	assert.Equal(t, 1, n.refs())
}

func TestNode_TryAddRefFailsAtZero(t *testing.T) {
	n := newNode[int, string](1, "one", 1)
	assert.False(t, n.tryAddRef(), "a node with no incoming edges must refuse a new reference")
}

func TestNode_SetRemovedOnce(t *testing.T) {
	n := newNode[int, string](1, "one", 2)
	assert.True(t, n.setRemoved())
	assert.True(t, n.removed())
	assert.False(t, n.setRemoved(), "a second setRemoved must lose the race")
}

func TestNode_TagLevels(t *testing.T) {
	n := newNode[int, string](1, "one", 3)
	require.True(t, n.tagLevels(1))
	for i := 0; i < n.height(); i++ {
		assert.Equal(t, uint32(1), n.levels[i].loadTag())
	}
	assert.False(t, n.tagLevels(1), "tagging an already-tagged level must report false")
}

func TestNode_SubRefPanicsOnUnderflow(t *testing.T) {
	n := newNode[int, string](1, "one", 1)
	assert.Panics(t, func() { n.subRef() }, "decrementing a refcount already at zero must panic")
}

func TestNode_TryRemoveAndTag(t *testing.T) {
	n := newNode[int, string](1, "one", 2)
	assert.True(t, n.tryRemoveAndTag())
	assert.True(t, n.removed())
	assert.Equal(t, uint32(1), n.levels[0].loadTag())
	assert.Equal(t, uint32(1), n.levels[1].loadTag())

	assert.False(t, n.tryRemoveAndTag(), "removing an already-removed node must report false")
}
