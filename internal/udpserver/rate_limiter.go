package udpserver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SourceLimiter 按来源 IP 的 Token Bucket 限流
type SourceLimiter struct {
	mu         sync.Mutex
	perSec     rate.Limit
	burst      int
	limiters   map[string]*sourceEntry
	idleExpire time.Duration
}

type sourceEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSourceLimiter 创建限流器
// ratePerSec: 每个来源每秒允许的数据报数
// burst: 突发容量
func NewSourceLimiter(ratePerSec, burst int) *SourceLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 50
	}
	if burst <= 0 {
		burst = ratePerSec * 2
	}
	return &SourceLimiter{
		perSec:     rate.Limit(ratePerSec),
		burst:      burst,
		limiters:   make(map[string]*sourceEntry),
		idleExpire: 10 * time.Minute,
	}
}

// Allow 检查该来源是否还有令牌（非阻塞）
func (l *SourceLimiter) Allow(source string) bool {
	l.mu.Lock()
	e, ok := l.limiters[source]
	if !ok {
		e = &sourceEntry{limiter: rate.NewLimiter(l.perSec, l.burst)}
		l.limiters[source] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Sources 当前跟踪的来源数
func (l *SourceLimiter) Sources() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Prune 删除空闲超过 idleExpire 的来源
func (l *SourceLimiter) Prune(now time.Time) {
	l.mu.Lock()
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleExpire {
			delete(l.limiters, k)
		}
	}
	l.mu.Unlock()
}

// RunCleanup 周期清理空闲来源，直到 ctx 结束
func (l *SourceLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Prune(now)
		}
	}
}
