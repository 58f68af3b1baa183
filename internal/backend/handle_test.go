package backend

import (
	"context"
	"io"
	"testing"

	"github.com/babarot/storax/internal/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleBackendCreateAndList(t *testing.T) {
	b, root := NewHandleBackend()
	res, err := b.Create(context.Background(), root, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", res.FinalName)

	nodes, err := b.List(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "a.txt", nodes[0].Name)
}

func TestHandleBackendWriteAndRead(t *testing.T) {
	b, root := NewHandleBackend()
	w, err := b.CreateWriter(context.Background(), root, "a.bin", types.PolicyFail, "")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := b.OpenReader(context.Background(), w.Location())
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestHandleBackendRenameReResolvesAndVerifies(t *testing.T) {
	b, root := NewHandleBackend()
	res, err := b.Create(context.Background(), root, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)

	ok, err := b.Rename(context.Background(), res.Location, "b.txt", types.PolicyFail, "")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := b.Stat(context.Background(), res.Location)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", n.Name)
}

func TestHandleBackendDeleteRecursive(t *testing.T) {
	b, root := NewHandleBackend()
	dirRes, err := b.Create(context.Background(), root, "dir", types.NodeDirectory, types.PolicyFail, "")
	require.NoError(t, err)
	_, err = b.Create(context.Background(), dirRes.Location, "child.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)

	ok, err := b.Delete(context.Background(), dirRes.Location)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, b.Exists(context.Background(), dirRes.Location))
}

func TestHandleBackendCreateConflictRenameNew(t *testing.T) {
	b, root := NewHandleBackend()
	_, err := b.Create(context.Background(), root, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)

	res, err := b.Create(context.Background(), root, "a.txt", types.NodeFile, types.PolicyRenameNew, "")
	require.NoError(t, err)
	assert.Equal(t, "a.txt (1)", res.FinalName)
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, types.BackendHandle, DetectKind("handle://root/child"))
	assert.Equal(t, types.BackendPath, DetectKind("/tmp/a.txt"))
}
