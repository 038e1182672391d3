package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"community": "unitedkingdom",
		"app_username": "notesync-bot",
		"kv_store": {"type": "memory"},
		"wiki": {"type": "memory"},
		"native": {"base_url": "http://127.0.0.1:9000"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 75, cfg.Transfer.BatchSize)
	require.Equal(t, "* * * * *", cfg.Transfer.Cron)
	require.Equal(t, "0 0 * * *", cfg.Transfer.WikiFlushCron)
	require.Equal(t, 30, cfg.Transfer.StalenessSeconds)
	require.Equal(t, 6, cfg.Transfer.DedupTTLHours)
	require.Equal(t, "UTC", cfg.Transfer.Timezone)
	require.Equal(t, "log", cfg.Notifier.Type)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 10, cfg.Native.TimeoutSec)
}

func TestLoad_RequiresDatabaseForPostgresStore(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"community": "unitedkingdom",
		"app_username": "notesync-bot",
		"native": {"base_url": "http://127.0.0.1:9000"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsIncompleteSMTP(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"jwt_secret": "secret",
		"community": "unitedkingdom",
		"app_username": "notesync-bot",
		"kv_store": {"type": "memory"},
		"wiki": {"type": "memory"},
		"native": {"base_url": "http://127.0.0.1:9000"},
		"notifier": {"type": "smtp", "host": "smtp.example.com"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}
