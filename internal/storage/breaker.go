package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSinkOpen 熔断期间直接丢弃，不调用下游
var ErrSinkOpen = errors.New("storage sink circuit open")

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker 包装一个 Sink：连续失败 threshold 次后熔断，cooldown 后放行一次试探写入，
// 试探成功恢复，失败继续熔断。
type Breaker struct {
	sink      Sink
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
	onChange func(from, to BreakerState)
}

// NewBreaker threshold<=0 时取 5，cooldown<=0 时取 30s
func NewBreaker(sink Sink, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{sink: sink, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// OnStateChange 状态变化回调（在锁外同步调用）
func (b *Breaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State 当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Save(ctx context.Context, r Reading) error {
	if err := b.before(); err != nil {
		return err
	}
	err := b.sink.Save(ctx, r)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrSinkOpen
		}
		b.state = BreakerHalfOpen
		b.probing = true
	case BreakerHalfOpen:
		// 同一时刻只允许一次试探
		if b.probing {
			b.mu.Unlock()
			return ErrSinkOpen
		}
		b.probing = true
	}
	to, fn := b.state, b.onChange
	b.mu.Unlock()

	if from != to && fn != nil {
		fn(from, to)
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	from := b.state
	b.probing = false
	if err == nil {
		b.failures = 0
		b.state = BreakerClosed
	} else {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	}
	to, fn := b.state, b.onChange
	b.mu.Unlock()

	if from != to && fn != nil {
		fn(from, to)
	}
}
