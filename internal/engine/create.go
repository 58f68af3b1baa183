// Package engine implements the journal-guarded create/rename/delete
// engines and the adaptive copy/move engines (§4.8-4.12).
package engine

import (
	"context"
	"path/filepath"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/journal"
	"github.com/babarot/storax/internal/lock"
)

// CreateEngine drives journal-guarded node creation (§4.8).
type CreateEngine struct {
	Detector backend.Detector
	Locks    *lock.Manager
	Journal  *journal.Journal
}

// Create locks on "create::{parent}/{name}", begins a create journal
// record, calls the backend, and commits the record on success or leaves
// it for startup recovery on failure.
func (e *CreateEngine) Create(ctx context.Context, parent, name string, nodeType types.NodeType, policy types.ConflictPolicy, manual string) (types.CreateResult, error) {
	key := lock.Key("create", filepath.Join(parent, name))
	release, err := e.Locks.Acquire(ctx, key)
	if err != nil {
		return types.CreateResult{}, err
	}
	defer release()

	rec, err := e.Journal.BeginCreate(parent, name, nodeType, policy, manual)
	if err != nil {
		return types.CreateResult{}, err
	}

	b := e.Detector.Resolve(parent)
	res, err := b.Create(ctx, parent, name, nodeType, policy, manual)
	if err != nil {
		// Leave the journal record: if the node still doesn't exist,
		// startup recovery will retry it; if it does, recovery discards
		// the record as already-effective.
		return types.CreateResult{}, err
	}

	if err := e.Journal.Commit(rec); err != nil {
		return res, err
	}
	return res, nil
}
