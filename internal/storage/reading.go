// Package storage 定义上行数据的存储协作方接口与异步转发队列。
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull 队列已满，数据被丢弃
var ErrQueueFull = errors.New("storage queue full")

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("storage queue closed")

// Reading 一条 DTU 上行数据
type Reading struct {
	DTU        string
	ReceivedAt time.Time
	RawHex     string
	// Registers 仅当载荷可按读保持寄存器应答解码时非空（偏移 -> 值）
	Registers map[int]uint16
}

// Sink 存储协作方
type Sink interface {
	Save(ctx context.Context, r Reading) error
}

// SinkFunc 函数适配器
type SinkFunc func(ctx context.Context, r Reading) error

func (f SinkFunc) Save(ctx context.Context, r Reading) error { return f(ctx, r) }

// LogSink 未启用数据库时仅记录日志
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Save(_ context.Context, r Reading) error {
	s.Log.Info("reading received",
		zap.String("dtu", r.DTU),
		zap.String("data", r.RawHex),
		zap.Int("registers", len(r.Registers)),
	)
	return nil
}

// Fanout 依次写入多个 Sink，全部尝试后合并错误
type Fanout []Sink

func (f Fanout) Save(ctx context.Context, r Reading) error {
	var errs []error
	for _, s := range f {
		if err := s.Save(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Queue 异步转发：入队不阻塞报文处理路径，后台单协程写入 Sink
type Queue struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	ch      chan Reading

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	// 可选结果回调：stored|error
	onResult func(result string)
}

// NewQueue 创建队列并启动写入协程
func NewQueue(sink Sink, size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{
		sink:    sink,
		log:     log.With(zap.String("component", "storage_queue")),
		timeout: 5 * time.Second,
		ch:      make(chan Reading, size),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// SetResultCallback 设置写入结果回调
func (q *Queue) SetResultCallback(fn func(result string)) { q.onResult = fn }

// Enqueue 非阻塞入队
func (q *Queue) Enqueue(r Reading) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len 当前排队数量
func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) run() {
	defer q.wg.Done()
	for r := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.sink.Save(ctx, r)
		cancel()
		result := "stored"
		if err != nil {
			result = "error"
			q.log.Error("save reading failed", zap.String("dtu", r.DTU), zap.Error(err))
		}
		if q.onResult != nil {
			q.onResult(result)
		}
	}
}

// Close 停止接收并等待排队数据写完，超时返回 ctx.Err()
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
