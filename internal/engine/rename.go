package engine

import (
	"context"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/journal"
	"github.com/babarot/storax/internal/lock"
)

// RenameEngine drives journal-guarded rename (§4.9).
type RenameEngine struct {
	Detector backend.Detector
	Locks    *lock.Manager
	Journal  *journal.Journal
}

// Rename locks on "rename::{source}", begins a rename journal record,
// calls the backend, and commits or leaves the record depending on the
// outcome.
func (e *RenameEngine) Rename(ctx context.Context, source, newName string, policy types.ConflictPolicy, manual string) (bool, error) {
	key := lock.Key("rename", source)
	release, err := e.Locks.Acquire(ctx, key)
	if err != nil {
		return false, err
	}
	defer release()

	rec, err := e.Journal.BeginRename(source, newName, policy, manual)
	if err != nil {
		return false, err
	}

	b := e.Detector.Resolve(source)
	ok, err := b.Rename(ctx, source, newName, policy, manual)
	if err != nil {
		return false, err
	}

	if err := e.Journal.Commit(rec); err != nil {
		return ok, err
	}
	return ok, nil
}
