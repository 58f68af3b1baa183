package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/babarot/storax/internal/core/types"
)

// invertAction implements the "Undo" column of the §4.7 invertor table.
func (o *Orchestrator) invertAction(ctx context.Context, a types.UndoAction) bool {
	switch a.Kind {
	case types.ActionCreate:
		_, err := o.Trash.MoveToTrash(ctx, a.Location)
		return err == nil

	case types.ActionRename:
		ok, err := o.RenameEngine.Rename(ctx, a.From, filepath.Base(a.To), types.PolicyFail, "")
		return err == nil && ok

	case types.ActionMove:
		ok, err := o.MoveEngine.Move(ctx, a.From, filepath.Dir(a.To), filepath.Base(a.To), types.PolicyFail, "")
		return err == nil && ok

	case types.ActionCopy:
		_, err := o.Trash.MoveToTrash(ctx, a.Location)
		return err == nil

	case types.ActionDelete:
		entry := types.TrashEntry{
			ID:               a.TrashEntryID,
			DisplayName:      a.DisplayName,
			IsDirectory:      a.IsDirectory,
			OriginalLocation: a.OriginalLocation,
			ParkedLocation:   a.ParkedLocation,
		}
		return o.Trash.Restore(ctx, entry) == nil

	default:
		return false
	}
}

// replayAction implements the "Redo" column of the §4.7 invertor table.
// Copy is not replayed on redo: it reports false and the redo entry is
// left in place (§4.7).
func (o *Orchestrator) replayAction(ctx context.Context, a types.UndoAction) bool {
	switch a.Kind {
	case types.ActionCreate:
		_, err := o.CreateEngine.Create(ctx, filepath.Dir(a.Location), filepath.Base(a.Location), a.NodeType, types.PolicyFail, "")
		return err == nil

	case types.ActionRename:
		ok, err := o.RenameEngine.Rename(ctx, a.To, filepath.Base(a.From), types.PolicyFail, "")
		return err == nil && ok

	case types.ActionMove:
		ok, err := o.MoveEngine.Move(ctx, a.To, filepath.Dir(a.From), filepath.Base(a.From), types.PolicyFail, "")
		return err == nil && ok

	case types.ActionCopy:
		return false

	case types.ActionDelete:
		_, err := o.Trash.MoveToTrash(ctx, a.OriginalLocation)
		return err == nil

	default:
		return false
	}
}

// Undo pops the most recent undo action and inverts it, pushing it onto
// the redo stack on success (§6 undo).
func (o *Orchestrator) Undo(ctx context.Context) (bool, error) {
	return o.UndoLog.UndoLast(func(a types.UndoAction) bool {
		return o.invertAction(ctx, a)
	})
}

// Redo pops the most recent redo action and replays it, pushing it back
// onto the undo stack on success (§6 redo).
func (o *Orchestrator) Redo(ctx context.Context) (bool, error) {
	return o.UndoLog.RedoLast(func(a types.UndoAction) bool {
		return o.replayAction(ctx, a)
	})
}

func (o *Orchestrator) CanUndo() bool    { return o.UndoLog.CanUndo() }
func (o *Orchestrator) CanRedo() bool    { return o.UndoLog.CanRedo() }
func (o *Orchestrator) UndoCount() int   { return o.UndoLog.UndoCount() }
func (o *Orchestrator) RedoCount() int   { return o.UndoLog.RedoCount() }
func (o *Orchestrator) ClearUndo() error { return o.UndoLog.Clear() }
