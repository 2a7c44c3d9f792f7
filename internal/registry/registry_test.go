package registry

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "13912345678"

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(10, 0, 0, 8), Port: port}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []EventKind
}

func (o *recordingObserver) OnDeviceEvent(kind EventKind, d Device) {
	o.mu.Lock()
	o.events = append(o.events, kind)
	o.mu.Unlock()
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := New(time.Minute)
	now := time.Now()

	assert.True(t, r.Register(testID, addr(40001), now))
	assert.Equal(t, 1, r.Len())

	d, ok := r.Get(testID)
	require.True(t, ok)
	assert.Equal(t, 40001, d.Port)
	assert.Equal(t, now, d.RegisteredAt)

	removed, ok := r.Unregister(testID)
	assert.True(t, ok)
	assert.Equal(t, testID, removed.ID)
	assert.Equal(t, 0, r.Len())

	// 再次注册是全新记录，不继承名称
	r.Register(testID, addr(40001), now)
	r.SetName(testID, "泵房")
	r.Unregister(testID)
	assert.True(t, r.Register(testID, addr(40002), now.Add(time.Second)))
	d, _ = r.Get(testID)
	assert.Empty(t, d.Name)
	assert.Equal(t, 40002, d.Port)
}

func TestRegistry_RegisterRefreshesAddress(t *testing.T) {
	r := New(time.Minute)
	t0 := time.Now()
	r.Register(testID, addr(40001), t0)
	r.SetName(testID, "一号站")

	assert.False(t, r.Register(testID, addr(50000), t0.Add(time.Second)))
	d, _ := r.Get(testID)
	assert.Equal(t, 50000, d.Port)
	assert.Equal(t, t0.Add(time.Second), d.LastActive)
	assert.Equal(t, "一号站", d.Name)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UnregisterAbsentIsNoop(t *testing.T) {
	r := New(time.Minute)
	_, ok := r.Unregister(testID)
	assert.False(t, ok)
}

func TestRegistry_TouchDoesNotCreate(t *testing.T) {
	r := New(time.Minute)
	assert.False(t, r.Touch(testID, time.Now()))
	assert.Equal(t, 0, r.Len())

	t0 := time.Now()
	r.Register(testID, addr(40001), t0)
	assert.True(t, r.Touch(testID, t0.Add(30*time.Second)))
	d, _ := r.Get(testID)
	assert.Equal(t, t0.Add(30*time.Second), d.LastActive)
	assert.Equal(t, t0, d.RegisteredAt)
}

func TestRegistry_Lookup(t *testing.T) {
	r := New(time.Minute)
	_, err := r.Lookup(testID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRegistered))

	r.Register(testID, addr(40001), time.Now())
	d, err := r.Lookup(testID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.8:40001", d.Addr().String())
}

func TestRegistry_SweepBoundary(t *testing.T) {
	timeout := time.Minute
	r := New(timeout)
	now := time.Now()

	r.Register("00000000001", addr(1), now.Add(-timeout-time.Millisecond))
	r.Register("00000000002", addr(2), now.Add(-timeout+time.Millisecond))
	r.Register("00000000003", addr(3), now.Add(-timeout))

	evicted := r.Sweep(now)
	require.Len(t, evicted, 1)
	assert.Equal(t, "00000000001", evicted[0].ID)

	_, ok := r.Get("00000000002")
	assert.True(t, ok)
	_, ok = r.Get("00000000003")
	assert.True(t, ok, "exactly at the timeout is still alive")
}

func TestRegistry_SnapshotSortedCopies(t *testing.T) {
	r := New(time.Minute)
	now := time.Now()
	r.Register("2", addr(2), now)
	r.Register("1", addr(1), now)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "1", snap[0].ID)

	snap[0].Port = 9999
	d, _ := r.Get("1")
	assert.Equal(t, 1, d.Port)
}

func TestRegistry_Observers(t *testing.T) {
	r := New(time.Minute)
	obs := &recordingObserver{}
	r.AddObserver(obs)

	now := time.Now()
	r.Register(testID, addr(1), now)
	r.SetName(testID, "x")
	r.Touch(testID, now)
	r.Sweep(now.Add(2 * time.Minute))

	assert.Equal(t, []EventKind{EventUpsert, EventUpsert, EventRemove}, obs.events)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New(time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Register(testID, addr(port), now)
				r.Touch(testID, now)
				_ = r.Snapshot()
				r.Sweep(now)
			}
		}(40000 + i)
	}
	wg.Wait()

	// 存活设备不会被并发扫描误删
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_TouchNotifiesThrottled(t *testing.T) {
	r := New(time.Minute)
	obs := &recordingObserver{}
	r.AddObserver(obs)

	t0 := time.Now()
	r.Register(testID, addr(1), t0)
	// 10 次保活，间隔 20s；距上次通知满 30s 才发一次 EventTouch
	for i := 1; i <= 10; i++ {
		require.True(t, r.Touch(testID, t0.Add(time.Duration(i)*20*time.Second)))
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.events)
	assert.Equal(t, EventUpsert, obs.events[0])
	touches := 0
	for _, k := range obs.events[1:] {
		assert.Equal(t, EventTouch, k)
		touches++
	}
	// 40s,80s,120s,160s,200s
	assert.Equal(t, 5, touches)
}

// blockingObserver 在第一次收到 EventRemove 时阻塞，直到 release 关闭
type blockingObserver struct {
	recordingObserver
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (o *blockingObserver) OnDeviceEvent(kind EventKind, d Device) {
	if kind == EventRemove {
		o.once.Do(func() {
			close(o.entered)
			<-o.release
		})
	}
	o.recordingObserver.OnDeviceEvent(kind, d)
}

func TestRegistry_EventsFollowChangeOrder(t *testing.T) {
	r := New(time.Minute)
	obs := &blockingObserver{entered: make(chan struct{}), release: make(chan struct{})}
	r.AddObserver(obs)

	now := time.Now()
	r.Register(testID, addr(1), now.Add(-2*time.Minute))

	swept := make(chan []Device, 1)
	go func() { swept <- r.Sweep(now) }()
	<-obs.entered

	// 扫描的 Remove 尚未投递完，并发的重新注册必须排在它之后通知
	registered := make(chan struct{})
	go func() {
		r.Register(testID, addr(2), now)
		close(registered)
	}()

	select {
	case <-registered:
		t.Fatal("register notified before pending remove was delivered")
	case <-time.After(50 * time.Millisecond):
	}
	close(obs.release)
	<-registered
	require.Len(t, <-swept, 1)

	_, ok := r.Get(testID)
	assert.True(t, ok)
	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []EventKind{EventUpsert, EventRemove, EventUpsert}, obs.events)
}
