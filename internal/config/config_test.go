package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Trash.MaxSize, cfg.Trash.MaxSize)
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trash:\n  max_age: \"7 days\"\n  max_size: \"1GB\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7 days", cfg.Trash.MaxAge)
	assert.Equal(t, "1GB", cfg.Trash.MaxSize)
	// Untouched sections keep defaults.
	assert.Equal(t, Default().Undo.Capacity, cfg.Undo.Capacity)
}

func TestLoadRejectsInvalidSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trash:\n  max_age: \"30 days\"\n  max_size: \"lots\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
