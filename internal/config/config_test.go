package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := New()
	cfg.DecSync = DecSyncConfig{
		Directory:          "/data/decsync",
		MaxCollections:     16,
		CheckRetries:       2,
		CheckRetryDelay:    2 * time.Second,
		OfflineRetryWindow: 60 * time.Second,
	}
	cfg.Database = DatabaseConfig{
		Path:         "/tmp/decbridge.db",
		BusyTimeout:  5000,
		QueryTimeout: 30 * time.Second,
	}
	cfg.Logging = LoggingConfig{
		Level:  "info",
		Format: "text",
	}
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("empty decsync directory is valid", func(t *testing.T) {
		cfg := validConfig()
		cfg.DecSync.Directory = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("max collections must be positive", func(t *testing.T) {
		cfg := validConfig()
		cfg.DecSync.MaxCollections = 0
		assert.ErrorContains(t, cfg.Validate(), "max_collections")
	})

	t.Run("negative check retries rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.DecSync.CheckRetries = -1
		assert.ErrorContains(t, cfg.Validate(), "check_retries")
	})

	t.Run("offline retry window must be positive", func(t *testing.T) {
		cfg := validConfig()
		cfg.DecSync.OfflineRetryWindow = 0
		assert.ErrorContains(t, cfg.Validate(), "offline_retry_window")
	})

	t.Run("empty database path rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Path = ""
		assert.ErrorContains(t, cfg.Validate(), "path")
	})

	t.Run("invalid log level rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "loud"
		assert.ErrorContains(t, cfg.Validate(), "log level")
	})

	t.Run("invalid log format rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Format = "xml"
		assert.ErrorContains(t, cfg.Validate(), "log format")
	})
}

func TestSetDirectory(t *testing.T) {
	cfg := validConfig()
	cfg.SetDirectory("/mnt/shared/decsync")
	assert.Equal(t, "/mnt/shared/decsync", cfg.DecSync.Directory)
}

func TestGlobalConfig(t *testing.T) {
	cfg := validConfig()
	Set(cfg)
	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoadFromEnv(t *testing.T) {
	configDir := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadFromEnv(configDir, "")
		require.NoError(t, err)

		assert.Equal(t, configDir, cfg.ConfigDir())
		assert.Equal(t, "", cfg.DecSync.Directory)
		assert.Equal(t, 16, cfg.DecSync.MaxCollections)
		assert.Equal(t, 2, cfg.DecSync.CheckRetries)
		assert.Equal(t, 2*time.Second, cfg.DecSync.CheckRetryDelay)
		assert.Equal(t, 60*time.Second, cfg.DecSync.OfflineRetryWindow)
		assert.Equal(t, "WAL", cfg.Database.JournalMode)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("DECBRIDGE_DECSYNC_DIR", "/data/decsync")
		t.Setenv("DECBRIDGE_INSTANCE_NAME", "laptop")
		t.Setenv("DECBRIDGE_MAX_COLLECTIONS", "4")
		t.Setenv("DECBRIDGE_OFFLINE_RETRY_WINDOW", "90s")
		t.Setenv("DECBRIDGE_LOG_LEVEL", "debug")

		cfg, err := LoadFromEnv(configDir, "")
		require.NoError(t, err)

		assert.Equal(t, "/data/decsync", cfg.DecSync.Directory)
		assert.Equal(t, "laptop", cfg.DecSync.InstanceName)
		assert.Equal(t, 4, cfg.DecSync.MaxCollections)
		assert.Equal(t, 90*time.Second, cfg.DecSync.OfflineRetryWindow)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid environment value fails validation", func(t *testing.T) {
		t.Setenv("DECBRIDGE_LOG_FORMAT", "xml")

		_, err := LoadFromEnv(configDir, "")
		assert.Error(t, err)
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("bogus"))
	assert.Greater(t, int(ParseLogLevel("none")), int(slog.LevelError))
}
