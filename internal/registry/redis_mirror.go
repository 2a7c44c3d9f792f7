package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis Key设计
const (
	// dtu:device:{dtuNo} -> MirrorRecord JSON
	keyDevicePrefix = "dtu:device:"

	// dtu:server:{serverID}:devices -> Set[dtuNo]
	keyServerPrefix = "dtu:server:"
)

// MirrorRecord Redis 中保存的设备快照
type MirrorRecord struct {
	DTU          string    `json:"dtu_no"`
	ServerID     string    `json:"server_id"`
	Addr         string    `json:"addr"`
	Name         string    `json:"name,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	LastActive   time.Time `json:"last_active"`
}

type mirrorOp struct {
	kind EventKind
	dev  Device
}

// RedisMirror 将注册表变更异步写入 Redis，供其他实例或看板查询。
// 实现 Observer；写入失败只记录日志，不影响注册表本身。
type RedisMirror struct {
	client   *redis.Client
	serverID string
	ttl      time.Duration
	log      *zap.Logger

	ops  chan mirrorOp
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewRedisMirror 创建镜像；ttl 通常为存活窗口的 2 倍
func NewRedisMirror(client *redis.Client, serverID string, ttl time.Duration, log *zap.Logger) *RedisMirror {
	if serverID == "" {
		serverID = uuid.New().String()
	}
	if ttl <= 0 {
		ttl = 6 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisMirror{
		client:   client,
		serverID: serverID,
		ttl:      ttl,
		log:      log.With(zap.String("component", "registry_mirror")),
		ops:      make(chan mirrorOp, 256),
		done:     make(chan struct{}),
	}
}

// ServerID 当前实例ID
func (m *RedisMirror) ServerID() string { return m.serverID }

// OnDeviceEvent 实现 Observer；队列满时丢弃并记录
func (m *RedisMirror) OnDeviceEvent(kind EventKind, d Device) {
	select {
	case m.ops <- mirrorOp{kind: kind, dev: d}:
	default:
		m.log.Warn("mirror queue full, dropping update", zap.String("dtu", d.ID))
	}
}

// Start 启动后台写入协程
func (m *RedisMirror) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case op := <-m.ops:
				m.apply(op)
			case <-m.done:
				// 退出前写完已排队的变更
				for {
					select {
					case op := <-m.ops:
						m.apply(op)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop 停止写入协程（幂等）
func (m *RedisMirror) Stop() {
	m.once.Do(func() { close(m.done) })
	m.wg.Wait()
}

func (m *RedisMirror) apply(op mirrorOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var err error
	switch op.kind {
	case EventUpsert, EventTouch:
		// 重写快照同时续期 TTL
		err = m.Put(ctx, op.dev)
	case EventRemove:
		err = m.Delete(ctx, op.dev.ID)
	}
	if err != nil {
		m.log.Warn("mirror write failed", zap.String("dtu", op.dev.ID), zap.Error(err))
	}
}

// Put 同步写入一条设备快照
func (m *RedisMirror) Put(ctx context.Context, d Device) error {
	data, err := json.Marshal(MirrorRecord{
		DTU:          d.ID,
		ServerID:     m.serverID,
		Addr:         d.Addr().String(),
		Name:         d.Name,
		RegisteredAt: d.RegisteredAt,
		LastActive:   d.LastActive,
	})
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, keyDevicePrefix+d.ID, data, m.ttl)
	pipe.SAdd(ctx, m.serverKey(), d.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete 同步删除一条设备快照
func (m *RedisMirror) Delete(ctx context.Context, id string) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, keyDevicePrefix+id)
	pipe.SRem(ctx, m.serverKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Cleanup 清理本实例写入的全部设备（用于优雅关闭）
func (m *RedisMirror) Cleanup(ctx context.Context) error {
	ids, err := m.client.SMembers(ctx, m.serverKey()).Result()
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, keyDevicePrefix+id)
	}
	pipe.Del(ctx, m.serverKey())
	_, err = pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) serverKey() string {
	return fmt.Sprintf("%s%s:devices", keyServerPrefix, m.serverID)
}
