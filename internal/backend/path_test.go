package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/babarot/storax/internal/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	notified []string
}

func (r *recordingNotifier) NotifyChanged(location string) {
	r.notified = append(r.notified, location)
}

func TestPathBackendCreateFile(t *testing.T) {
	dir := t.TempDir()
	b := NewPathBackend(nil)

	res, err := b.Create(context.Background(), dir, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "a.txt", res.FinalName)
	assert.True(t, b.Exists(context.Background(), filepath.Join(dir, "a.txt")))
}

func TestPathBackendCreateConflictRenameNew(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))

	b := NewPathBackend(nil)
	res, err := b.Create(context.Background(), dir, "a.txt", types.NodeFile, types.PolicyRenameNew, "")
	require.NoError(t, err)
	assert.Equal(t, "a.txt (1)", res.FinalName)
}

func TestPathBackendCreateConflictFailDeclines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))

	b := NewPathBackend(nil)
	_, err := b.Create(context.Background(), dir, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConflictDeclined)
}

func TestPathBackendDeleteDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f"), nil, 0o644))

	b := NewPathBackend(nil)
	ok, err := b.Delete(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoDirExists(t, dir)
}

func TestPathBackendDeleteMissingIsNotFound(t *testing.T) {
	dir := t.TempDir()
	b := NewPathBackend(nil)
	_, err := b.Delete(context.Background(), filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPathBackendRenameSameNameNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	b := NewPathBackend(nil)
	ok, err := b.Rename(context.Background(), path, "a.txt", types.PolicyFail, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, path)
}

func TestPathBackendRenameSkipsNotifyForNonMediaContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	notifier := &recordingNotifier{}
	b := NewPathBackend(notifier)

	_, err := b.Rename(context.Background(), path, "a.jpg", types.PolicyFail, "")
	require.NoError(t, err)
	// Content isn't actually a JPEG, so the sniff should suppress the
	// notification despite the whitelisted extension.
	assert.Empty(t, notifier.notified)
}

func TestPathBackendListDirectoryReportsZeroSizeForDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("hello"), 0o644))

	b := NewPathBackend(nil)
	nodes, err := b.List(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		if n.IsDirectory {
			assert.Equal(t, int64(0), n.Size)
		} else {
			assert.Equal(t, int64(5), n.Size)
		}
	}
}
