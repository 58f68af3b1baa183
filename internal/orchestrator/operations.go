package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/engine"
	"github.com/babarot/storax/internal/undo"
)

// Create makes a node and registers the matching Create undo action.
// Registration lives here rather than in CreateEngine so that every
// undoable public operation except Delete funnels its bookkeeping
// through the orchestrator (§4.13); Delete's to_trash already registers
// its own undo action as part of the trash hand-off (§4.10).
func (o *Orchestrator) Create(ctx context.Context, parent, name string, nodeType types.NodeType, policy types.ConflictPolicy, manual string) (types.CreateResult, error) {
	result, err := o.CreateEngine.Create(ctx, parent, name, nodeType, policy, manual)
	if err != nil {
		return result, err
	}
	o.UndoLog.Register(types.UndoAction{
		Kind:     types.ActionCreate,
		RunID:    undo.NewRunID(),
		Location: result.Location,
		NodeType: nodeType,
	})
	return result, nil
}

// Rename renames source and registers the matching Rename undo action.
// The recorded From/To pair follows the §9 convention: From is the
// post-operation location, To is the pre-operation one.
func (o *Orchestrator) Rename(ctx context.Context, source, newName string, policy types.ConflictPolicy, manual string) (bool, error) {
	ok, err := o.RenameEngine.Rename(ctx, source, newName, policy, manual)
	if err != nil || !ok {
		return ok, err
	}
	o.UndoLog.Register(types.UndoAction{
		Kind:  types.ActionRename,
		RunID: undo.NewRunID(),
		From:  filepath.Join(filepath.Dir(source), newName),
		To:    source,
	})
	return ok, nil
}

// Move relocates source under destParent and registers the matching
// Move undo action (same From/To convention as Rename).
func (o *Orchestrator) Move(ctx context.Context, source, destParent, newName string, policy types.ConflictPolicy, manual string) (bool, error) {
	ok, err := o.MoveEngine.Move(ctx, source, destParent, newName, policy, manual)
	if err != nil || !ok {
		return ok, err
	}
	o.UndoLog.Register(types.UndoAction{
		Kind:  types.ActionMove,
		RunID: undo.NewRunID(),
		From:  filepath.Join(destParent, newName),
		To:    source,
	})
	return ok, nil
}

// Copy starts an adaptive copy and relays its progress to the caller,
// registering the Copy undo action only once the stream reaches a
// successful terminal event (§4.13: register upon success). A cancelled
// or integrity-failed copy must not push an undo action for a target
// that was cleaned up mid-transfer — undoing such an action would find
// nothing at Location, fail, and wedge every undo beneath it. Registering
// from the terminal Progress event also lets the action's Location carry
// the actual conflict-resolved target path rather than the requested
// name. Copy's undo moves the copied object to trash; its redo is not
// invertible (§4.7).
func (o *Orchestrator) Copy(ctx context.Context, source, destParent, newName string, policy types.ConflictPolicy, manual string, forceProgress bool) (*engine.Handle, error) {
	handle, err := o.CopyEngine.CopyAdaptive(ctx, source, destParent, newName, policy, manual, forceProgress)
	if err != nil {
		return nil, err
	}

	relayed := make(chan engine.Progress)
	go func() {
		defer close(relayed)
		var last engine.Progress
		for p := range handle.Progress {
			last = p
			relayed <- p
		}
		if last.Done && last.Err == nil {
			o.UndoLog.Register(types.UndoAction{
				Kind:     types.ActionCopy,
				RunID:    undo.NewRunID(),
				Location: last.Target,
			})
		}
	}()

	return &engine.Handle{JobID: handle.JobID, Adaptive: handle.Adaptive, Progress: relayed}, nil
}

// ToTrash moves location to trash. DeleteEngine.ToTrash already
// registers the Delete undo action as part of its trash hand-off
// (§4.10), so nothing further is registered here.
func (o *Orchestrator) ToTrash(ctx context.Context, location string) (types.TrashEntry, error) {
	return o.DeleteEngine.ToTrash(ctx, location)
}

// PermanentDelete removes location directly, bypassing trash.
func (o *Orchestrator) PermanentDelete(ctx context.Context, location string) (bool, error) {
	return o.DeleteEngine.PermanentDelete(ctx, location)
}
