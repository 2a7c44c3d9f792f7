package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要本地 Redis，不可用时跳过
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisMirror_FollowsRegistry(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	mirror := NewRedisMirror(client, "test-server-1", time.Minute, nil)
	mirror.Start()

	r := New(time.Minute)
	r.AddObserver(mirror)
	r.Register(testID, addr(40001), time.Now())
	r.SetName(testID, "泵房")

	// Stop 会写完已排队的变更
	mirror.Stop()

	val, err := client.Get(ctx, keyDevicePrefix+testID).Bytes()
	require.NoError(t, err)
	var rec MirrorRecord
	require.NoError(t, json.Unmarshal(val, &rec))
	assert.Equal(t, "test-server-1", rec.ServerID)
	assert.Equal(t, "10.0.0.8:40001", rec.Addr)
	assert.Equal(t, "泵房", rec.Name)

	ttl, err := client.TTL(ctx, keyDevicePrefix+testID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, mirror.Delete(ctx, testID))
	err = client.Get(ctx, keyDevicePrefix+testID).Err()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisMirror_Cleanup(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	mirror := NewRedisMirror(client, "test-server-2", time.Minute, nil)
	require.NoError(t, mirror.Put(ctx, Device{ID: "00000000001", IP: addr(1).IP, Port: 1}))
	require.NoError(t, mirror.Put(ctx, Device{ID: "00000000002", IP: addr(2).IP, Port: 2}))

	require.NoError(t, mirror.Cleanup(ctx))

	n, err := client.Exists(ctx,
		keyDevicePrefix+"00000000001",
		keyDevicePrefix+"00000000002",
		mirror.serverKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRedisMirror_TouchRefreshesTTL(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	mirror := NewRedisMirror(client, "test-server-3", time.Minute, nil)
	mirror.Start()
	r := New(time.Minute)
	r.AddObserver(mirror)

	t0 := time.Now()
	r.Register(testID, addr(40001), t0)
	r.Touch(testID, t0.Add(45*time.Second))
	mirror.Stop()

	val, err := client.Get(ctx, keyDevicePrefix+testID).Bytes()
	require.NoError(t, err)
	var rec MirrorRecord
	require.NoError(t, json.Unmarshal(val, &rec))
	assert.True(t, rec.LastActive.Equal(t0.Add(45*time.Second)))
}
