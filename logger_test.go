package goskip

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLogger_Silent(t *testing.T) {
	var l Logger = noopLogger{}
	assert.NotPanics(t, func() {
		l.Debugf("x=%d", 1)
		l.Warnf("y=%d", 2)
	})
}

func TestStdLogger_Prefixes(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(log.New(&buf, "", 0))

	l.Debugf("count=%d", 3)
	assert.Contains(t, buf.String(), "DEBUG count=3")

	buf.Reset()
	l.Warnf("lagging by %d", 7)
	assert.Contains(t, buf.String(), "WARN lagging by 7")
}
