package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/lock"
	"github.com/babarot/storax/internal/trash"
	"github.com/babarot/storax/internal/undo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeleteEngine(t *testing.T) (*DeleteEngine, string) {
	t.Helper()
	root := t.TempDir()
	trashDir := filepath.Join(root, ".trash")
	require.NoError(t, os.MkdirAll(trashDir, 0o755))

	det := backend.Detector{Path: backend.NewPathBackend(nil)}
	store := trash.NewStore(filepath.Join(root, "index.json"))
	tm, err := trash.NewManager(store, det, trash.Options{TrashDir: trashDir, MaxAge: "30 days", MaxSize: "5GB"})
	require.NoError(t, err)

	undoLog, err := undo.Open(filepath.Join(root, "undo.json"), filepath.Join(root, "redo.json"), 100)
	require.NoError(t, err)

	return &DeleteEngine{
		Detector: det,
		Locks:    lock.New(5 * time.Second),
		Trash:    tm,
		Undo:     undoLog,
	}, root
}

func TestToTrashRegistersUndoAction(t *testing.T) {
	e, root := newDeleteEngine(t)
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	_, err := e.ToTrash(context.Background(), src)
	require.NoError(t, err)
	assert.NoFileExists(t, src)
	assert.Equal(t, 1, e.Undo.UndoCount())
}

func TestPermanentDeleteRemovesDirectly(t *testing.T) {
	e, root := newDeleteEngine(t)
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	ok, err := e.PermanentDelete(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, src)
}

func TestPermanentDeleteFromTrashPurgesEntry(t *testing.T) {
	e, root := newDeleteEngine(t)
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	entry, err := e.ToTrash(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, e.PermanentDeleteFromTrash(context.Background(), entry))
	assert.NoFileExists(t, entry.ParkedLocation)
}
