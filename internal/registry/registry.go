// Package registry 维护 DTU 号到最近来源地址与活跃时间的映射。
//
// 注册表由单把互斥锁保护，每次查询/更新单独加锁；扫描淘汰逐条复核，
// 不会误删扫描期间刚刷新过的设备。
package registry

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// ErrNotRegistered 设备当前不在注册表中
var ErrNotRegistered = errors.New("dtu not registered")

// Device 注册表中的一条设备记录（对外返回的是副本）
type Device struct {
	ID           string    `json:"dtuNo"`
	IP           net.IP    `json:"ip"`
	Port         int       `json:"port"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastActive   time.Time `json:"lastActive"`
	Name         string    `json:"name,omitempty"`

	notifiedAt time.Time // 最近一次通知观察者的时间，用于节流 Touch 事件
}

// Addr 下发使用的 UDP 地址
func (d Device) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: d.IP, Port: d.Port}
}

// EventKind 注册表变更类型
type EventKind int

const (
	EventUpsert EventKind = iota + 1
	EventRemove
	// EventTouch 仅活跃时间变化；距上次通知超过存活窗口一半时才发出
	EventTouch
)

// Observer 接收注册表变更通知。
// 通知按变更发生的顺序串行投递，回调不得阻塞，也不得回调注册表。
type Observer interface {
	OnDeviceEvent(kind EventKind, d Device)
}

// Registry 设备注册表
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*Device
	timeout   time.Duration
	observers []Observer

	// notifyMu 在释放 mu 之前获取，保证观察者看到的顺序与变更顺序一致
	notifyMu sync.Mutex
}

// New 创建注册表；timeout 为存活窗口
func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Registry{devices: make(map[string]*Device), timeout: timeout}
}

// Timeout 存活窗口
func (r *Registry) Timeout() time.Duration { return r.timeout }

// AddObserver 注册变更观察者，应在启动阶段调用
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Register 以 UDP 实际来源地址创建或刷新记录，返回是否为新建
func (r *Registry) Register(id string, addr *net.UDPAddr, now time.Time) bool {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		d = &Device{ID: id}
		r.devices[id] = d
	}
	d.IP = append(net.IP(nil), addr.IP...)
	d.Port = addr.Port
	d.RegisteredAt = now
	d.LastActive = now
	d.notifiedAt = now
	r.unlockAndNotify(EventUpsert, *d)
	return !ok
}

// Touch 刷新活跃时间；设备不存在时返回 false 且不创建记录
func (r *Registry) Touch(id string, now time.Time) bool {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	d.LastActive = now
	if now.Sub(d.notifiedAt) < r.timeout/2 {
		r.mu.Unlock()
		return true
	}
	d.notifiedAt = now
	r.unlockAndNotify(EventTouch, *d)
	return true
}

// Unregister 删除记录；不存在时为空操作
func (r *Registry) Unregister(id string) (Device, bool) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return Device{}, false
	}
	delete(r.devices, id)
	r.unlockAndNotify(EventRemove, *d)
	return *d, true
}

// SetName 写入外部查询到的显示名称
func (r *Registry) SetName(id, name string) bool {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	d.Name = name
	d.notifiedAt = time.Now()
	r.unlockAndNotify(EventUpsert, *d)
	return true
}

// Get 返回记录副本
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Lookup 同 Get，不存在时返回包装了 ErrNotRegistered 的错误
func (r *Registry) Lookup(id string) (Device, error) {
	d, ok := r.Get(id)
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return d, nil
}

// Snapshot 返回按 DTU 号排序的全部记录副本
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 当前记录数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stale 判断记录在 now 时刻是否已超出存活窗口（恰好等于窗口不算超时）
func (r *Registry) Stale(d Device, now time.Time) bool {
	return now.Sub(d.LastActive) > r.timeout
}

// Sweep 淘汰超出存活窗口的记录，返回被淘汰的设备
func (r *Registry) Sweep(now time.Time) []Device {
	r.mu.RLock()
	var candidates []string
	for id, d := range r.devices {
		if r.Stale(*d, now) {
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	var evicted []Device
	for _, id := range candidates {
		r.mu.Lock()
		d, ok := r.devices[id]
		// 复核：候选收集之后可能已被刷新或重新注册
		if !ok || !r.Stale(*d, now) {
			r.mu.Unlock()
			continue
		}
		delete(r.devices, id)
		evicted = append(evicted, *d)
		r.unlockAndNotify(EventRemove, *d)
	}
	return evicted
}

// unlockAndNotify 须在持有 mu 写锁时调用：先取得 notifyMu 再释放 mu，
// 之后在锁外投递通知
func (r *Registry) unlockAndNotify(kind EventKind, d Device) {
	observers := r.observers
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()
	for _, o := range observers {
		o.OnDeviceEvent(kind, d)
	}
}
