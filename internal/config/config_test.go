package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 256, cfg.Engine.PoolSize)
	require.Equal(t, 2, cfg.Engine.ReplacerK)
	require.Equal(t, 50*time.Millisecond, cfg.Engine.DeadlockInterval.Std())
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  pool_size: 32
  replacer_k: 3
  deadlock_interval: 250ms
server:
  addr: localhost:9999
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 32, cfg.Engine.PoolSize)
	require.Equal(t, 3, cfg.Engine.ReplacerK)
	require.Equal(t, 250*time.Millisecond, cfg.Engine.DeadlockInterval.Std())
	require.Equal(t, "localhost:9999", cfg.Server.Addr)
	require.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	require.Equal(t, "sukunadb", cfg.Telemetry.ServiceName)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  pool_size: 0\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
