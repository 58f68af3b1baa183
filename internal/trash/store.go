// Package trash implements the trash store and its age/quota eviction
// policy (§4.4, §4.5).
package trash

import (
	"sync"

	"github.com/babarot/storax/internal/atomicfile"
	"github.com/babarot/storax/internal/core/types"
)

// indexFile is the on-disk shape of the trash index: a single JSON array,
// rewritten wholesale on every mutation via atomicfile's write-temp,
// fsync, rename, fsync-dir protocol (§4.5).
type indexFile []types.TrashEntry

// Store is the trash index: a single JSON-array file guarded by a mutex
// for atomic read-modify-write (§4.5). A corrupt or partial index file
// parses to empty rather than failing startup.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore opens (without yet reading) the trash index at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() ([]types.TrashEntry, error) {
	var idx indexFile
	if err := atomicfile.ReadJSON(s.path, &idx); err != nil {
		// Missing, empty, or corrupt: treat as an empty trash rather than
		// fail the whole operation (§4.5).
		return nil, nil
	}
	return idx, nil
}

func (s *Store) save(entries []types.TrashEntry) error {
	return atomicfile.WriteJSON(s.path, indexFile(entries))
}

// All returns every entry currently recorded in the index.
func (s *Store) All() ([]types.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add appends entry to the index.
func (s *Store) Add(entry types.TrashEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.save(entries)
}

// Remove deletes the entry with the given id, reporting whether it was
// found.
func (s *Store) Remove(id string) (types.TrashEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return types.TrashEntry{}, false, err
	}
	for i, e := range entries {
		if e.ID == id {
			removed := e
			entries = append(entries[:i], entries[i+1:]...)
			return removed, true, s.save(entries)
		}
	}
	return types.TrashEntry{}, false, nil
}

// RemoveMany deletes every entry whose id is in ids.
func (s *Store) RemoveMany(ids map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !ids[e.ID] {
			kept = append(kept, e)
		}
	}
	return s.save(kept)
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (types.TrashEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return types.TrashEntry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return types.TrashEntry{}, false, nil
}
