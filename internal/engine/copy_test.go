package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/config"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCopyEngine(t *testing.T, cfg config.Copy) *CopyEngine {
	t.Helper()
	dir := t.TempDir()
	return &CopyEngine{
		Detector: backend.Detector{Path: backend.NewPathBackend(nil)},
		Locks:    lock.New(5 * time.Second),
		WALDir:   filepath.Join(dir, "wal"),
		CacheDir: filepath.Join(dir, "cache"),
		Config:   cfg,
	}
}

func smallCopyConfig() config.Copy {
	return config.Copy{
		ChunkSizeBytes:          64 * 1024,
		WALSyncBytes:            128 * 1024,
		WriteSpeedProbeBytes:    256 * 1024,
		AdaptiveThresholdFactor: 0.3,
		FallbackThresholdBytes:  1024 * 1024 * 1024, // keeps small tests on quick-copy if the write-speed probe fails
		PausePollInterval:       10 * time.Millisecond,
		DirCopyConcurrency:      2,
	}
}

func TestCopyAdaptiveQuickCopiesSmallFile(t *testing.T) {
	e := newCopyEngine(t, smallCopyConfig())
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello world"), 0o644))
	destParent := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(destParent, 0o755))

	handle, err := e.CopyAdaptive(context.Background(), src, destParent, "a.txt", types.PolicyFail, "", false)
	require.NoError(t, err)
	assert.False(t, handle.Adaptive)

	var last Progress
	for p := range handle.Progress {
		last = p
	}
	require.NoError(t, last.Err)
	assert.FileExists(t, filepath.Join(destParent, "a.txt"))
}

func TestCopyAdaptiveForceProgressUsesTransactionalMode(t *testing.T) {
	e := newCopyEngine(t, smallCopyConfig())
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello world, this is a bit longer content"), 0o644))
	destParent := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(destParent, 0o755))

	handle, err := e.CopyAdaptive(context.Background(), src, destParent, "a.txt", types.PolicyFail, "", true)
	require.NoError(t, err)
	assert.True(t, handle.Adaptive)

	var last Progress
	for p := range handle.Progress {
		last = p
	}
	require.NoError(t, last.Err)
	assert.True(t, last.Done)
	assert.FileExists(t, filepath.Join(destParent, "a.txt"))

	data, err := os.ReadFile(filepath.Join(destParent, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world, this is a bit longer content", string(data))
}

func TestCopyAdaptiveDirectoryUsesTransactionalMode(t *testing.T) {
	e := newCopyEngine(t, smallCopyConfig())
	root := t.TempDir()
	src := filepath.Join(root, "srcdir")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("two"), 0o644))
	destParent := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(destParent, 0o755))

	handle, err := e.CopyAdaptive(context.Background(), src, destParent, "copied", types.PolicyFail, "", false)
	require.NoError(t, err)
	assert.True(t, handle.Adaptive) // directories always use transactional mode

	var last Progress
	for p := range handle.Progress {
		last = p
	}
	require.NoError(t, last.Err)
	assert.FileExists(t, filepath.Join(destParent, "copied", "a.txt"))
	assert.FileExists(t, filepath.Join(destParent, "copied", "b.txt"))
}

func TestCopyAdaptiveRejectsHandleBackendLocations(t *testing.T) {
	e := newCopyEngine(t, smallCopyConfig())
	_, err := e.CopyAdaptive(context.Background(), "handle://root/a", "/tmp", "a", types.PolicyFail, "", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBackendUnsupported)
}

func TestCancelUnknownJobReturnsFalse(t *testing.T) {
	e := newCopyEngine(t, smallCopyConfig())
	assert.False(t, e.Cancel("nope"))
	assert.False(t, e.Pause("nope"))
	assert.False(t, e.Resume("nope"))
}
