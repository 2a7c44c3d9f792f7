package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8888", cfg.UDP.Addr)
	assert.Equal(t, 3*time.Minute, cfg.Registry.LivenessTimeout)
	assert.Equal(t, 30*time.Second, cfg.Registry.SweepInterval)
	assert.Equal(t, uint8(0x02), cfg.Poll.SlaveAddr)
	assert.Equal(t, uint16(11), cfg.Poll.Quantity)
	assert.Equal(t, uint16(0x02C5), cfg.Relay.Register)
	assert.True(t, cfg.Relay.WrapServerData)
	assert.False(t, cfg.Database.Enable)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gw.yaml")
	content := `
udp:
  addr: ":9999"
poll:
  interval: 15s
  quantity: 4
naming:
  source: file
  file: names.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("DTU_REGISTRY_LIVENESSTIMEOUT", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.UDP.Addr)
	assert.Equal(t, 15*time.Second, cfg.Poll.Interval)
	assert.Equal(t, uint16(4), cfg.Poll.Quantity)
	assert.Equal(t, "file", cfg.Naming.Source)
	assert.Equal(t, 90*time.Second, cfg.Registry.LivenessTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Registry: RegistryConfig{LivenessTimeout: time.Minute, SweepInterval: time.Second},
			Poll:     PollConfig{Enable: true, Interval: time.Second, Quantity: 11},
		}
	}
	require.NoError(t, valid().Validate())

	c := valid()
	c.Poll.Quantity = 126
	assert.Error(t, c.Validate())

	c = valid()
	c.Registry.SweepInterval = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Naming.Source = "file"
	assert.Error(t, c.Validate())

	c = valid()
	c.Naming.Source = "ldap"
	assert.Error(t, c.Validate())

	c = valid()
	c.Storage.Webhook.Enable = true
	assert.Error(t, c.Validate())
	c.Storage.Webhook.URL = "http://localhost:9000/hooks/dtu"
	assert.NoError(t, c.Validate())

	c = valid()
	c.Poll.Enable = false
	c.Poll.Quantity = 0
	assert.NoError(t, c.Validate())

	c = valid()
	c.UDP.ReadBuffer = 1040
	assert.Error(t, c.Validate())
	c.UDP.ReadBuffer = 1041
	assert.NoError(t, c.Validate())
}
