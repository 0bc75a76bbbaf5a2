package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 27, cfg.Directions.MaxWaypoints)
	assert.Equal(t, 10*time.Second, cfg.Directions.Timeout)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Empty(t, cfg.Directions.APIKey)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatch.yaml")
	yml := `
server:
  port: "9090"
directions:
  api_key: file-key
  timeout: 3s
cache:
  backend: redis
  redis_addr: localhost:6379
logging:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("DISPATCH_DIRECTIONS__MAX_WAYPOINTS", "10")
	t.Setenv("DISPATCH_LOGGING__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.Directions.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Directions.Timeout)
	assert.Equal(t, 10, cfg.Directions.MaxWaypoints)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}

func TestLoadAPIKeyFallback(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Directions.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Cache.Backend = "memcached"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Directions.Provider = "here"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Directions.MaxWaypoints = 1
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}
