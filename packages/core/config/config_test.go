package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30000, cfg.Timeout)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.Equal(t, []string{"console"}, cfg.Reporters)
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetParallel())
	assert.False(t, cfg.GetBail())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apitest.yaml")
	content := `
defaultEnvironment: staging
timeout: 5000
retries: 2
validateSSL: false
headers:
  X-Api-Version: "2"
reporters: [console, junit]
environments:
  staging:
    baseUrl: https://staging.example.com
  prod:
    baseUrl: https://api.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.DefaultEnvironment)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.False(t, cfg.GetValidateSSL())
	assert.Equal(t, "2", cfg.Headers["X-Api-Version"])
	assert.Equal(t, []string{"console", "junit"}, cfg.Reporters)
	assert.Equal(t, "https://staging.example.com", cfg.EnvironmentVariables("staging")["baseUrl"])
	assert.Nil(t, cfg.EnvironmentVariables("missing"))

	// defaults fill in fields the file omits
	assert.Equal(t, 10, cfg.MaxRedirects)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apitest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [not a number"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestFindAndLoadConfigMissing(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 30000, cfg.Timeout)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers["X-Base"] = "1"

	override := &Config{
		Timeout:     1000,
		ValidateSSL: BoolPtr(false),
		Headers:     map[string]string{"X-Over": "2"},
		Bail:        BoolPtr(true),
	}

	merged := base.Merge(override)

	assert.Equal(t, 1000, merged.Timeout)
	assert.False(t, merged.GetValidateSSL())
	assert.True(t, merged.GetBail())
	assert.Equal(t, "1", merged.Headers["X-Base"])
	assert.Equal(t, "2", merged.Headers["X-Over"])

	// receiver untouched
	assert.Equal(t, 30000, base.Timeout)
	assert.Empty(t, base.Headers["X-Over"])
}

func TestMergeNil(t *testing.T) {
	base := DefaultConfig()
	assert.Same(t, base, base.Merge(nil))
}
