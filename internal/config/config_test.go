package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log_level: debug\n"))

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "https://hacker-news.firebaseio.com/v0", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.API.Retry.MaxAttempts)
	assert.False(t, cfg.Digest.SendEmpty)
}

func TestLoad_NegativeMaxAttemptsNormalized(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
api:
  retry:
    max_attempts: -5
`))

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.API.Retry.MaxAttempts)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SMTP_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, `
smtp:
  password: ${TEST_SMTP_PASSWORD}
`))

	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.SMTP.Password)
}
