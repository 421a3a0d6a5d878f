package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "securedraw.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
listen_addr: "127.0.0.1:9000"
store_path: "/var/lib/securedraw"
clock:
  genesis: 2026-01-01T00:00:00Z
  slot_duration: 2s
commitment_ttl: 30
request_window: 12
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.ListenAddr)
	assert.Equal(t, "/var/lib/securedraw", c.StorePath)
	assert.Equal(t, 2*time.Second, c.Clock.SlotDuration)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), c.Clock.Genesis.UTC())
	assert.Equal(t, uint64(30), c.CommitmentTTL)
	assert.Equal(t, uint64(12), c.RequestWindow)
	assert.Nil(t, c.Redis)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
store_path: "."
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListenAddr, c.ListenAddr)
	assert.Equal(t, defaultSlotDuration, c.Clock.SlotDuration)
	assert.Equal(t, uint64(defaultCommitmentTTL), c.CommitmentTTL)
	assert.Equal(t, uint64(defaultRequestWindow), c.RequestWindow)
	assert.Empty(t, c.DatabasePath)
}

func TestLoad_FileNotFound(t *testing.T) {
	c, err := Load("/nonexistent/securedraw.yml")
	assert.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "version: [unterminated\n")

	c, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	for _, test := range []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "unsupported version",
			config:  Config{Version: "2.0", StorePath: "."},
			wantErr: "unsupported version",
		},
		{
			name:    "missing store path",
			config:  Config{Version: "1.0"},
			wantErr: "store_path is required",
		},
		{
			name:    "redis without url",
			config:  Config{Version: "1.0", StorePath: ".", Redis: &RedisConfig{Namespace: "draws"}},
			wantErr: "redis.url is required",
		},
		{
			name:    "redis without namespace",
			config:  Config{Version: "1.0", StorePath: ".", Redis: &RedisConfig{URL: "redis://localhost:6379"}},
			wantErr: "redis.namespace is required",
		},
		{
			name: "redis and duckdb",
			config: Config{
				Version:      "1.0",
				StorePath:    ".",
				DatabasePath: "ledger.duckdb",
				Redis:        &RedisConfig{URL: "redis://localhost:6379", Namespace: "draws"},
			},
			wantErr: "mutually exclusive",
		},
		{
			name:   "redis ledger",
			config: Config{Version: "1.0", StorePath: ".", Redis: &RedisConfig{URL: "redis://localhost:6379", Namespace: "draws"}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.config.Validate()
			if test.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.wantErr)
		})
	}
}
