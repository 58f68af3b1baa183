package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func TestWriteJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "record.json")

	require.NoError(t, WriteJSON(path, payload{Name: "a"}))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "a", got.Name)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestWriteJSONOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.json")

	require.NoError(t, WriteJSON(path, payload{Name: "a"}))
	require.NoError(t, WriteJSON(path, payload{Name: "b"}))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "b", got.Name)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Remove(filepath.Join(dir, "missing")))
}
