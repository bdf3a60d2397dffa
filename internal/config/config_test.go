package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "heaptrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
schema_version: "1.2.0"
allocator:
  backend: arena
  arena_size: 65536
report:
  path: /tmp/heaptrace-report.json
  json: true
warn:
  path: /tmp/heaptrace-warn.log
watch:
  enabled: true
  control_file: /tmp/heaptrace-dump
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "arena", cfg.Allocator.Backend)
	assert.EqualValues(t, 65536, cfg.Allocator.ArenaSize)
	assert.True(t, cfg.Report.JSON)
	assert.Equal(t, "/tmp/heaptrace-report.json", cfg.Report.Path)
	assert.Equal(t, "/tmp/heaptrace-warn.log", cfg.Warn.Path)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "/tmp/heaptrace-dump", cfg.Watch.ControlFile)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `schema_version: "1.0.0"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "system", cfg.Allocator.Backend)
	assert.False(t, cfg.Watch.Enabled)
	assert.Empty(t, cfg.Report.Path)
	assert.Empty(t, cfg.Warn.Path)
}

func TestValidate(t *testing.T) {
	t.Run("SchemaOutsideRange", func(t *testing.T) {
		path := writeConfig(t, `schema_version: "2.0.0"`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside supported range")
	})

	t.Run("MalformedSchema", func(t *testing.T) {
		path := writeConfig(t, `schema_version: "not-a-version"`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid schema_version")
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		path := writeConfig(t, "schema_version: \"1.0.0\"\nallocator:\n  backend: slab\n")

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown allocator backend")
	})

	t.Run("ArenaNeedsSize", func(t *testing.T) {
		cfg := Default()
		cfg.Allocator.Backend = "arena"
		cfg.Allocator.ArenaSize = 0

		require.Error(t, cfg.Validate())
	})

	t.Run("WatchNeedsControlFile", func(t *testing.T) {
		cfg := Default()
		cfg.Watch.Enabled = true

		require.Error(t, cfg.Validate())
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
