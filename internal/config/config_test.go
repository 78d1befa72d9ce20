package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaker/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Consumer.Prefetch)
	assert.Equal(t, 5, cfg.Scoring.Limit)
	assert.Equal(t, "user_messages", cfg.Broker.Queue)
	assert.Equal(t, []string{"profile.#", "user.#"}, cfg.Broker.BindingKeys)
	assert.Equal(t, 24*time.Hour, cfg.Queue.TTL)
	assert.Contains(t, cfg.DB.DSN, "port=5432")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("CONSUMER_PREFETCH", "3")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Consumer.Prefetch)
	assert.Contains(t, cfg.DB.DSN, "tcp(localhost:3306)")
}

func TestLoad_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("CONSUMER_PREFETCH", "3")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("prefetch", 10, "")
	require.NoError(t, fs.Parse([]string{"--prefetch=25"}))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Consumer.Prefetch)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  limit: 7\nbroker:\n  queue: custom\n"), 0o600))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scoring.Limit)
	assert.Equal(t, "custom", cfg.Broker.Queue)
}
