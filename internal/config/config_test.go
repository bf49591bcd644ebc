package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("usenet:\n  server: news.example.com\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "news.example.com", cfg.Usenet.Server)
	assert.Equal(t, 119, cfg.Usenet.Port)
	assert.Equal(t, 10, cfg.Usenet.Connections)
	assert.True(t, cfg.Usenet.VerifySSLCerts)
	assert.Equal(t, 1<<20, cfg.Memory.IOBufferSize)
	assert.Equal(t, 100, cfg.Tuning.PipelineSize)
	assert.True(t, cfg.PostProcessing.AutoPar2Repair)
	assert.False(t, cfg.PostProcessing.DeleteRarAfterExtract)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresServer(t *testing.T) {
	cfg := Config{Usenet: Usenet{Port: 119, Connections: 1}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresPositiveConnections(t *testing.T) {
	cfg := Config{Usenet: Usenet{Server: "news.example.com", Port: 119, Connections: 0}}
	assert.Error(t, cfg.Validate())
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	assert.False(t, Exists(path))
	require.NoError(t, os.WriteFile(path, []byte("usenet:\n  server: x\n"), 0o644))
	assert.True(t, Exists(path))
}
