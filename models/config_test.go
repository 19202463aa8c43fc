package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultArchiveDir, cfg.Archives.Directory)
	assert.Equal(t, ".zip", cfg.Archives.Extension)
	assert.Equal(t, DefaultCacheSize, cfg.Archives.CacheSize)
	assert.Equal(t, int64(1024*1024*1024), cfg.Archives.MaxFileSizeBytes())
	assert.True(t, cfg.Archives.ShouldVerifyChecksums())
	assert.Equal(t, DefaultMaxContentLength, cfg.Content.MaxContentLength)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Address())
	assert.Equal(t, []string{"stderr"}, cfg.Logging.OutputPaths)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	path := writeConfig(t, `
archives:
  directory: /srv/archives
  extension: zim
  cache_size: 3
  verify_checksums: false
content:
  max_content_length: 500
server:
  transport: http
  port: 9000
`)
	t.Setenv("LAR_ARCHIVE_CACHE_SIZE", "7")
	t.Setenv("LAR_USE_READABILITY", "yes")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/archives", cfg.Archives.Directory)
	assert.Equal(t, ".zim", cfg.Archives.Extension)
	assert.Equal(t, 7, cfg.Archives.CacheSize)
	assert.False(t, cfg.Archives.ShouldVerifyChecksums())
	assert.Equal(t, 500, cfg.Content.MaxContentLength)
	assert.True(t, cfg.Content.UseReadability)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadConfigEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("LAR_MAX_SEARCH_RESULTS=25\n"), 0o644))
	t.Setenv("ENV_FILE", envPath)
	t.Cleanup(func() { os.Unsetenv("LAR_MAX_SEARCH_RESULTS") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxResults)
}

func TestLoadConfigRejectsMalformedEnv(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "non-numeric cache size", key: "LAR_ARCHIVE_CACHE_SIZE", val: "abc"},
		{name: "misspelled boolean pointer", key: "LAR_VERIFY_CHECKSUMS", val: "flase"},
		{name: "misspelled boolean", key: "LAR_USE_READABILITY", val: "maybe"},
		{name: "port overflow", key: "LAR_PORT", val: "99999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
			t.Setenv(tt.key, tt.val)

			cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, faults.IsConfig(err))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadConfigEnvBooleans(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("LAR_VERIFY_CHECKSUMS", "No")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.False(t, cfg.Archives.ShouldVerifyChecksums())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative cache size", func(c *Config) { c.Archives.CacheSize = -1 }},
		{"negative content length", func(c *Config) { c.Content.MaxContentLength = -5 }},
		{"unknown transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, faults.IsConfig(err))
		})
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	_, err := LoadConfig(writeConfig(t, "archives: [unterminated"))
	require.Error(t, err)
	assert.True(t, faults.IsConfig(err))
}
