package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)

	assert.Equal(t, "https://tidningar.kb.se", cfg.ArchiveBase)
	assert.Equal(t, "https://data.kb.se", cfg.APIBase)
	assert.Equal(t, "kb_newspapers", cfg.DownloadDir)
	assert.Equal(t, "KB_Newspapers", cfg.Drive.RootFolder)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	require.NotNil(t, cfg.Headless)
	assert.True(t, *cfg.Headless)
}

func TestLoadParsesJSON5(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json5", `{
		// staging bucket
		download_dir: "/tmp/staging",
		retry: {attempts: 5, delay_seconds: 1},
		drive: {root_folder: "Newspapers", share_with: "me@example.com"},
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/staging", cfg.DownloadDir)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, "Newspapers", cfg.Drive.RootFolder)
	assert.Equal(t, "me@example.com", cfg.Drive.ShareWith)
}

func TestLoadLocalOverrideWins(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json5", `{download_dir: "a", drive: {root_folder: "Base"}}`)
	writeConfig(t, dir, "config.local.json5", `{drive: {root_folder: "Override", token: "secret"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "a", cfg.DownloadDir)
	assert.Equal(t, "Override", cfg.Drive.RootFolder)
	assert.Equal(t, "secret", cfg.Drive.Token)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json5", `{download_dir: `)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRetryPolicy(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 2*time.Second, policy.BaseDelay)
}

func TestHeadlessCanBeDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json5", `{headless: false}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Headless)
	assert.False(t, *cfg.Headless)
}
