package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/classgraph/config"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "WARN", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := setupLogger(tt.level)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.True(t, slog.Default().Enabled(nil, tt.want))
		})
	}
}

func TestConfigFileFeedsSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ndata_dir: /tmp/rooms\npool_size: 3\n"), 0o644))

	app := newApp()
	require.NoError(t, app.Run([]string{"classgraph", "--config", path}))

	cfg, ok := app.Metadata[configKey].(config.Config)
	require.True(t, ok, "setup must stash the loaded configuration")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/rooms", cfg.DataDir)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.True(t, slog.Default().Enabled(nil, slog.LevelDebug))
}

func TestLogLevelFlagOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	app := newApp()
	require.NoError(t, app.Run([]string{"classgraph", "--config", path, "--log-level", "error"}))

	cfg := app.Metadata[configKey].(config.Config)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.False(t, slog.Default().Enabled(nil, slog.LevelInfo))
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/from-file\n"), 0o644))
	t.Setenv("CLASSGRAPH_DATA_DIR", "/tmp/from-env")

	app := newApp()
	require.NoError(t, app.Run([]string{"classgraph", "--config", path}))

	cfg := app.Metadata[configKey].(config.Config)
	assert.Equal(t, "/tmp/from-env", cfg.DataDir)
}

func TestAuthorizeCommandFlags(t *testing.T) {
	t.Run("owner is required", func(t *testing.T) {
		err := newApp().Run([]string{"classgraph", "authorize", "--db", t.TempDir(), "--seconds", "60"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner")
	})

	t.Run("bad timezone is rejected before opening the store", func(t *testing.T) {
		err := newApp().Run([]string{
			"classgraph", "authorize",
			"--db", t.TempDir(),
			"--owner", "auth0|x",
			"--seconds", "60",
			"--timezone", "Mars/Olympus",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid timezone")
	})
}
