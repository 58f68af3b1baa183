package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/journal"
	"github.com/babarot/storax/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCreateEngine(t *testing.T) *CreateEngine {
	t.Helper()
	dir := t.TempDir()
	j, err := journal.New(filepath.Join(dir, "journal"))
	require.NoError(t, err)
	return &CreateEngine{
		Detector: backend.Detector{Path: backend.NewPathBackend(nil)},
		Locks:    lock.New(5 * time.Second),
		Journal:  j,
	}
}

func TestCreateEngineCreatesFile(t *testing.T) {
	e := newCreateEngine(t)
	dir := t.TempDir()

	res, err := e.Create(context.Background(), dir, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", res.FinalName)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
}

func TestCreateEngineFailsOnConflictUnderFail(t *testing.T) {
	e := newCreateEngine(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))

	_, err := e.Create(context.Background(), dir, "a.txt", types.NodeFile, types.PolicyFail, "")
	require.Error(t, err)
}
