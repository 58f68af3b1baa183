package trash

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, backend.Detector, string, string) {
	t.Helper()
	root := t.TempDir()
	trashDir := filepath.Join(root, ".trash")
	require.NoError(t, os.MkdirAll(trashDir, 0o755))

	det := backend.Detector{Path: backend.NewPathBackend(nil)}
	store := NewStore(filepath.Join(root, "index.json"))
	m, err := NewManager(store, det, Options{TrashDir: trashDir, MaxAge: "30 days", MaxSize: "5GB"})
	require.NoError(t, err)
	return m, det, root, trashDir
}

func TestMoveToTrashRenamesAndRecords(t *testing.T) {
	m, _, root, trashDir := newTestManager(t)
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	entry, err := m.MoveToTrash(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", entry.DisplayName)
	assert.NoFileExists(t, src)
	assert.FileExists(t, entry.ParkedLocation)

	// The parked object must land under the per-app trash directory, not
	// stay next to its original siblings (§3, §4.4).
	assert.Equal(t, trashDir, filepath.Dir(entry.ParkedLocation))
	siblings, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, s := range siblings {
		assert.NotContains(t, s.Name(), entry.ID, "parked object must not remain in the original directory")
	}

	entries, err := m.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}

func TestRestoreBringsFileBack(t *testing.T) {
	m, _, root, _ := newTestManager(t)
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	entry, err := m.MoveToTrash(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, m.Restore(context.Background(), entry))
	assert.FileExists(t, src)

	entries, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPermanentlyDeleteRemovesParkedObjectAndEntry(t *testing.T) {
	m, _, root, _ := newTestManager(t)
	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	entry, err := m.MoveToTrash(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, m.PermanentlyDelete(context.Background(), entry))
	assert.NoFileExists(t, entry.ParkedLocation)

	entries, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmptyPurgesEverything(t *testing.T) {
	m, _, root, _ := newTestManager(t)
	for _, name := range []string{"a.txt", "b.txt"} {
		src := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
		_, err := m.MoveToTrash(context.Background(), src)
		require.NoError(t, err)
	}

	require.NoError(t, m.Empty(context.Background()))
	entries, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAgeEvictionPurgesExpiredEntries(t *testing.T) {
	root := t.TempDir()
	trashDir := filepath.Join(root, ".trash")
	require.NoError(t, os.MkdirAll(trashDir, 0o755))
	det := backend.Detector{Path: backend.NewPathBackend(nil)}
	store := NewStore(filepath.Join(root, "index.json"))
	m, err := NewManager(store, det, Options{TrashDir: trashDir, MaxAge: "1 seconds", MaxSize: "5GB"})
	require.NoError(t, err)

	src := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	entry, err := m.MoveToTrash(context.Background(), src)
	require.NoError(t, err)

	// Backdate the entry so the next enforcePolicies call evicts it.
	store.mu.Lock()
	entries, _ := store.load()
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i].TrashedAt = time.Now().Add(-1 * time.Hour).UnixMilli()
		}
	}
	_ = store.save(entries)
	store.mu.Unlock()

	require.NoError(t, m.enforcePolicies(context.Background()))

	remaining, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.NoFileExists(t, entry.ParkedLocation)
}

func TestQuotaEvictionPurgesOldestFirst(t *testing.T) {
	root := t.TempDir()
	trashDir := filepath.Join(root, ".trash")
	require.NoError(t, os.MkdirAll(trashDir, 0o755))
	det := backend.Detector{Path: backend.NewPathBackend(nil)}
	store := NewStore(filepath.Join(root, "index.json"))
	m, err := NewManager(store, det, Options{TrashDir: trashDir, MaxAge: "30 days", MaxSize: "10B"})
	require.NoError(t, err)

	first := filepath.Join(root, "first.txt")
	require.NoError(t, os.WriteFile(first, []byte("0123456789"), 0o644))
	firstEntry, err := m.MoveToTrash(context.Background(), first)
	require.NoError(t, err)

	second := filepath.Join(root, "second.txt")
	require.NoError(t, os.WriteFile(second, []byte("0123456789"), 0o644))
	_, err = m.MoveToTrash(context.Background(), second)
	require.NoError(t, err)

	// Quota of 10 bytes can't hold both 10-byte entries; the oldest
	// (first) should have been evicted by the second MoveToTrash call.
	remaining, err := m.List()
	require.NoError(t, err)
	for _, e := range remaining {
		assert.NotEqual(t, firstEntry.ID, e.ID)
	}
}
