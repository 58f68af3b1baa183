package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMoveEngine(t *testing.T) *MoveEngine {
	t.Helper()
	dir := t.TempDir()
	locks := lock.New(5 * time.Second)
	det := backend.Detector{Path: backend.NewPathBackend(nil)}
	copyEngine := &CopyEngine{
		Detector: det,
		Locks:    locks,
		WALDir:   filepath.Join(dir, "copy_wal"),
		CacheDir: filepath.Join(dir, "cache"),
		Config:   smallCopyConfig(),
	}
	return &MoveEngine{
		Detector: det,
		Locks:    locks,
		Copy:     copyEngine,
		WALDir:   filepath.Join(dir, "move_wal"),
	}
}

func TestMoveSameDeviceUsesRename(t *testing.T) {
	e := newMoveEngine(t)
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	destParent := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(destParent, 0o755))

	ok, err := e.Move(context.Background(), src, destParent, "a.txt", types.PolicyFail, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(destParent, "a.txt"))
}

func TestMoveRejectsHandleBackendLocations(t *testing.T) {
	e := newMoveEngine(t)
	_, err := e.Move(context.Background(), "handle://root/a", "/tmp", "a", types.PolicyFail, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBackendUnsupported)
}
