package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:8545/ws/events", cfg.NodeURL)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "bloom-indexer.db", cfg.Database.DSN)
	require.Equal(t, time.Minute, cfg.Redis.TTL)
	require.Equal(t, 500*time.Millisecond, cfg.Reconnect.Initial)
	require.Equal(t, "test", cfg.Environment)
}

func TestLoadConfigExpandsAndOverridesEnv(t *testing.T) {
	t.Setenv("INDEXER_TEST_DSN", "postgres://bloom@db/bloom")
	t.Setenv("BLOOM_INDEXER_LISTEN", ":9999")
	path := writeConfig(t, `
nodeUrl: wss://node.example/ws/events
listenAddress: ":8090"
database:
  driver: postgres
  dsn: ${INDEXER_TEST_DSN}
redis:
  address: 127.0.0.1:6379
  ttl: 30s
reconnect:
  initial: 1s
  max: 10s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://bloom@db/bloom", cfg.Database.DSN)
	require.Equal(t, ":9999", cfg.ListenAddress)
	require.Equal(t, 30*time.Second, cfg.Redis.TTL)
	require.Equal(t, 10*time.Second, cfg.Reconnect.Max)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "database:\n  driver: mysql\n  dsn: x\n"))
	require.Error(t, err)
	_, err = LoadConfig(writeConfig(t, "nodeUrl: http://node\n"))
	require.Error(t, err)
	_, err = LoadConfig(writeConfig(t, "reconnect:\n  initial: 5s\n  max: 1s\n"))
	require.Error(t, err)
}
