package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/babarot/storax/internal/config"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.AppDir = filepath.Join(base, ".storax")

	o, err := New(cfg, Options{})
	require.NoError(t, err)

	work := filepath.Join(base, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	return o, work
}

func TestCreateRegistersUndoAction(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	res, err := o.Create(ctx, root, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "a.txt"))
	assert.True(t, o.CanUndo())
	assert.Equal(t, filepath.Join(root, "a.txt"), res.Location)

	ok, err := o.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, filepath.Join(root, "a.txt"))
	assert.True(t, o.CanRedo())
}

func TestRenameUndoRedoRoundTrip(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))

	ok, err := o.Rename(ctx, src, "b.txt", types.PolicyFail, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(root, "b.txt"))

	ok, err = o.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, src)
	assert.NoFileExists(t, filepath.Join(root, "b.txt"))

	ok, err = o.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(root, "b.txt"))
}

func TestToTrashAndUndoRestores(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))

	_, err := o.ToTrash(ctx, src)
	require.NoError(t, err)
	assert.NoFileExists(t, src)

	entries, err := o.ListTrash()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ok, err := o.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, src)
}

func TestEmptyTrashPurgesEverything(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		p := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		_, err := o.ToTrash(ctx, p)
		require.NoError(t, err)
	}

	ok, err := o.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := o.ListTrash()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListDirectoryReturnsChildren(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	nodes, err := o.ListDirectory(ctx, root)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestRecoverPendingOperationsNoopWhenNothingPending(t *testing.T) {
	o, _ := newOrchestrator(t)
	handles, err := o.RecoverPendingOperations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestCopyRegistersUndoOnlyAfterSuccessfulDrain(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))
	dest := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	handle, err := o.Copy(ctx, src, dest, "a.txt", types.PolicyFail, "", false)
	require.NoError(t, err)

	// No undo action until the progress stream has actually been drained
	// to a successful terminal event.
	assert.False(t, o.CanUndo())

	var last engine.Progress
	for p := range handle.Progress {
		last = p
	}
	require.True(t, last.Done)
	require.NoError(t, last.Err)
	assert.FileExists(t, filepath.Join(dest, "a.txt"))

	assert.True(t, o.CanUndo())
	ok, err := o.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, filepath.Join(dest, "a.txt"))
}

func TestCopyFailedDrainDoesNotRegisterUndo(t *testing.T) {
	o, root := newOrchestrator(t)
	ctx := context.Background()

	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))
	dest := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	handle, err := o.Copy(ctx, src, dest, "a.txt", types.PolicyFail, "", true)
	require.NoError(t, err)

	// Cancel before draining: runFileCopy checks isCancelled() at the top
	// of every chunk iteration, so a cancellation flipped any time before
	// the final chunk is observed on the next iteration and the stream
	// ends in a non-nil Err.
	o.CopyEngine.Cancel(handle.JobID)

	var last engine.Progress
	for p := range handle.Progress {
		last = p
	}
	require.True(t, last.Done)

	if last.Err == nil {
		// The copy raced ahead of the cancel flag and completed; the
		// success path is already covered by
		// TestCopyRegistersUndoOnlyAfterSuccessfulDrain.
		t.Skip("copy completed before cancellation was observed")
	}

	// A cancelled copy must not wedge the undo stack with an action whose
	// target no longer exists.
	assert.False(t, o.CanUndo())
}
