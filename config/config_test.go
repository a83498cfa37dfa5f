package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs/config"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
feed:
  source: ./feed.zip
`))
	require.NoError(t, err)

	assert.Equal(t, "./feed.zip", cfg.Feed.Source)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, config.DefaultTimeout, time.Duration(cfg.Feed.Timeout))
	assert.Equal(t, config.DefaultMaxSize, cfg.Feed.MaxSize)
	assert.False(t, cfg.Feed.CaseInsensitiveHeaders)
}

func TestParseFull(t *testing.T) {
	cfg, err := config.Parse([]byte(`
feed:
  source: https://example.com/gtfs.zip
  headers:
    Authorization: Bearer abc
  caseInsensitiveHeaders: true
  timeout: 90s
  maxSize: 1024
server:
  port: 9000
  allowedOrigins:
    - http://localhost:5173
storage:
  backend: sqlite
  sqliteDirectory: /tmp/gtfs
log:
  level: debug
  development: true
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.Feed.Headers)
	assert.True(t, cfg.Feed.CaseInsensitiveHeaders)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Feed.Timeout))
	assert.Equal(t, 1024, cfg.Feed.MaxSize)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/gtfs", cfg.Storage.SQLiteDirectory)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestParseInvalid(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{"missing source", `server: {port: 80}`},
		{"bad backend", "feed: {source: x}\nstorage: {backend: mysql}"},
		{"postgres without conn", "feed: {source: x}\nstorage: {backend: postgres}"},
		{"bad log level", "feed: {source: x}\nlog: {level: loud}"},
		{"negative port", "feed: {source: x}\nserver: {port: -1}"},
		{"bad duration", "feed: {source: x, timeout: soon}"},
		{"not yaml", "feed: [source"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.content))
			assert.Error(t, err)
		})
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("GTFS_FEED_SOURCE", "gs://bucket/feed.zip")
	t.Setenv("GTFS_SERVER_PORT", "8181")
	t.Setenv("GTFS_LOG_LEVEL", "warn")
	t.Setenv("GTFS_POSTGRES_CONN", "postgres://localhost/gtfs")

	cfg, err := config.Parse([]byte(`
feed:
  source: ./feed.zip
storage:
  backend: postgres
`))
	require.NoError(t, err)

	assert.Equal(t, "gs://bucket/feed.zip", cfg.Feed.Source)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres://localhost/gtfs", cfg.Storage.PostgresConnStr)

	t.Setenv("GTFS_SERVER_PORT", "eighty")
	_, err = config.Parse([]byte("feed: {source: x}"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtfs.yml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  source: ./feed\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./feed", cfg.Feed.Source)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
