package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
	"github.com/taoyao-code/dtu-gateway/internal/naming"
	"github.com/taoyao-code/dtu-gateway/internal/storage"
)

func TestGenerateServerID(t *testing.T) {
	t.Setenv("SERVER_ID", "")
	id := GenerateServerID()
	assert.True(t, strings.HasPrefix(id, "dtu-gateway-"))
	assert.NotEqual(t, id, GenerateServerID())

	t.Setenv("SERVER_ID", "gw-1")
	assert.Equal(t, "gw-1", GenerateServerID())
}

func TestConnectDB_Disabled(t *testing.T) {
	pool, err := ConnectDBAndMigrate(context.Background(), cfgpkg.DatabaseConfig{Enable: false}, zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, pool)
}

func TestNewRedisClient_Disabled(t *testing.T) {
	c, err := NewRedisClient(context.Background(), cfgpkg.RedisConfig{}, zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRegistry_InMemory(t *testing.T) {
	reg, mirror := NewRegistry(cfgpkg.RegistryConfig{LivenessTimeout: time.Minute, Mirror: true}, nil, "gw", zap.NewNop())
	assert.Nil(t, mirror)
	assert.Equal(t, time.Minute, reg.Timeout())
}

func TestNewResolver(t *testing.T) {
	log := zap.NewNop()

	r, err := NewResolver(cfgpkg.NamingConfig{Source: "none"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, naming.Nop{}, r)

	_, err = NewResolver(cfgpkg.NamingConfig{Source: "db"}, nil, log)
	assert.Error(t, err)

	p := filepath.Join(t.TempDir(), "names.yaml")
	require.NoError(t, os.WriteFile(p, []byte("devices:\n  \"13912345678\": 泵房\n"), 0o644))
	r, err = NewResolver(cfgpkg.NamingConfig{Source: "file", File: p}, nil, log)
	require.NoError(t, err)
	name, _ := r.Lookup(context.Background(), "13912345678")
	assert.Equal(t, "泵房", name)
}

func TestNewStorageQueue_LogSinkWithoutDB(t *testing.T) {
	_, appm := NewMetrics()
	q := NewStorageQueue(cfgpkg.StorageConfig{QueueSize: 4}, nil, appm, zap.NewNop())
	require.NoError(t, q.Enqueue(storage.Reading{DTU: "13912345678", RawHex: "aa"}))
	require.NoError(t, q.Close(context.Background()))
}

func TestNewStorageQueue_Webhook(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := cfgpkg.StorageConfig{
		QueueSize: 4,
		Webhook:   cfgpkg.WebhookConfig{Enable: true, URL: ts.URL, Timeout: time.Second},
	}
	q := NewStorageQueue(cfg, nil, nil, zap.NewNop())
	require.NoError(t, q.Enqueue(storage.Reading{DTU: "13912345678", RawHex: "aa"}))
	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}
