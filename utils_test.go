package goskip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, compare(5, 5), "Must return 0")
	assert.Equal(t, 1, compare(6, 5), "Must return 1")
	assert.Equal(t, -1, compare(4, 5), "Must return -1")
	assert.Equal(t, 0, compare("aaaa", "aaaa"), "Must return 0")
	assert.Equal(t, 1, compare("aaab", "aaaa"), "Must return 1")
	assert.Equal(t, -1, compare("a", "aaaa"), "Must return -1")
}
