package udpserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceLimiter_IndependentBuckets(t *testing.T) {
	l := NewSourceLimiter(1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// 其他来源不受影响
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Equal(t, 2, l.Sources())
}

func TestSourceLimiter_Prune(t *testing.T) {
	l := NewSourceLimiter(10, 10)
	l.Allow("10.0.0.1")

	l.Prune(time.Now())
	assert.Equal(t, 1, l.Sources())

	l.Prune(time.Now().Add(11 * time.Minute))
	assert.Equal(t, 0, l.Sources())
}
