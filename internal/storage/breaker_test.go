package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	err   error
	calls int
}

func (s *flakySink) Save(context.Context, Reading) error {
	s.calls++
	return s.err
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	down := errors.New("endpoint down")
	sink := &flakySink{err: down}
	b := NewBreaker(sink, 3, time.Minute)
	now := time.Unix(1700000000, 0)
	b.now = func() time.Time { return now }

	var changes []string
	b.OnStateChange(func(from, to BreakerState) { changes = append(changes, from.String()+"->"+to.String()) })

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Save(context.Background(), Reading{}), down)
	}
	assert.Equal(t, BreakerOpen, b.State())

	// 熔断期间不调用下游
	assert.ErrorIs(t, b.Save(context.Background(), Reading{}), ErrSinkOpen)
	assert.Equal(t, 3, sink.calls)

	// 冷却后试探失败，重新熔断
	now = now.Add(time.Minute)
	assert.ErrorIs(t, b.Save(context.Background(), Reading{}), down)
	assert.Equal(t, BreakerOpen, b.State())

	// 再次冷却后试探成功，恢复
	now = now.Add(time.Minute)
	sink.err = nil
	require.NoError(t, b.Save(context.Background(), Reading{}))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 5, sink.calls)

	assert.Equal(t, []string{
		"closed->open",
		"open->half_open", "half_open->open",
		"open->half_open", "half_open->closed",
	}, changes)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	sink := &flakySink{err: errors.New("x")}
	b := NewBreaker(sink, 2, time.Minute)

	_ = b.Save(context.Background(), Reading{})
	sink.err = nil
	require.NoError(t, b.Save(context.Background(), Reading{}))
	sink.err = errors.New("x")
	_ = b.Save(context.Background(), Reading{})
	assert.Equal(t, BreakerClosed, b.State())
}
