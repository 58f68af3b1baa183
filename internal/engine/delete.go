package engine

import (
	"context"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/lock"
	"github.com/babarot/storax/internal/trash"
	"github.com/babarot/storax/internal/undo"
)

// DeleteEngine drives trash-move and permanent deletion (§4.10).
type DeleteEngine struct {
	Detector backend.Detector
	Locks    *lock.Manager
	Trash    *trash.Manager
	Undo     *undo.Log
}

// ToTrash delegates to the trash manager and, on success, registers a
// Delete undo action carrying both the original and parked locations.
func (e *DeleteEngine) ToTrash(ctx context.Context, location string) (types.TrashEntry, error) {
	entry, err := e.Trash.MoveToTrash(ctx, location)
	if err != nil {
		return types.TrashEntry{}, err
	}

	if err := e.Undo.Register(types.UndoAction{
		Kind:             types.ActionDelete,
		RunID:            undo.NewRunID(),
		TrashEntryID:     entry.ID,
		OriginalLocation: entry.OriginalLocation,
		ParkedLocation:   entry.ParkedLocation,
		DisplayName:      entry.DisplayName,
		IsDirectory:      entry.IsDirectory,
	}); err != nil {
		return entry, err
	}
	return entry, nil
}

// PermanentDelete locks on "permanent_delete::{location}" and calls
// backend delete directly, bypassing trash.
func (e *DeleteEngine) PermanentDelete(ctx context.Context, location string) (bool, error) {
	key := lock.Key("permanent_delete", location)
	release, err := e.Locks.Acquire(ctx, key)
	if err != nil {
		return false, err
	}
	defer release()

	b := e.Detector.Resolve(location)
	return b.Delete(ctx, location)
}

// PermanentDeleteFromTrash locks on "trash_delete::{parked}" and purges
// the entry via the trash manager.
func (e *DeleteEngine) PermanentDeleteFromTrash(ctx context.Context, entry types.TrashEntry) error {
	key := lock.Key("trash_delete", entry.ParkedLocation)
	release, err := e.Locks.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return e.Trash.PermanentlyDelete(ctx, entry)
}
