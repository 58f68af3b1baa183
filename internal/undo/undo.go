// Package undo implements the bounded dual-stack undo/redo log (§4.7).
package undo

import (
	"sync"

	"github.com/babarot/storax/internal/atomicfile"
	"github.com/babarot/storax/internal/core/types"
	"github.com/rs/xid"
)

// InvertFunc applies the inverse of an action and reports whether the
// inversion succeeded; on success the log moves the action between
// stacks. Supplied by the orchestrator, which knows how to drive each
// ActionKind's undo/redo per the table in §4.7.
type InvertFunc func(action types.UndoAction) bool

// persisted is the on-disk shape of the two stacks, each mirrored as its
// own JSON array via atomic-rename (§4.7).
type persisted struct {
	Undo []types.UndoAction `json:"undo"`
	Redo []types.UndoAction `json:"redo"`
}

// Log is the bounded, disk-mirrored undo/redo stack pair. All access is
// serialized by a single mutex (§4.7).
type Log struct {
	mu       sync.Mutex
	undoPath string
	redoPath string
	capacity int
	undo     []types.UndoAction
	redo     []types.UndoAction
}

// Open loads (or initializes) a Log from undoPath/redoPath with the given
// capacity (default 100 per §3 budget).
func Open(undoPath, redoPath string, capacity int) (*Log, error) {
	l := &Log{undoPath: undoPath, redoPath: redoPath, capacity: capacity}

	var u, r persisted
	if err := atomicfile.ReadJSON(undoPath, &u); err == nil {
		l.undo = u.Undo
	}
	if err := atomicfile.ReadJSON(redoPath, &r); err == nil {
		l.redo = r.Redo
	}
	return l, nil
}

// NewRunID mints a run id for an undo action's RunID field, using rs/xid
// for compact, time-sortable ids. Every caller mints a fresh id per
// action.
func NewRunID() string {
	return xid.New().String()
}

// Register pushes action onto the undo stack, clears the redo stack, and
// evicts the oldest undo entry if capacity is exceeded (§4.7).
func (l *Log) Register(action types.UndoAction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.undo = append(l.undo, action)
	if l.capacity > 0 && len(l.undo) > l.capacity {
		l.undo = l.undo[len(l.undo)-l.capacity:]
	}
	l.redo = nil

	return l.persist()
}

// UndoLast peeks the most recent undo action, invokes invert, and on
// success pops it from undo and pushes it to redo (§4.7).
func (l *Log) UndoLast(invert InvertFunc) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.undo) == 0 {
		return false, nil
	}
	action := l.undo[len(l.undo)-1]
	if !invert(action) {
		return false, nil
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, action)
	return true, l.persist()
}

// RedoLast is the symmetric counterpart of UndoLast.
func (l *Log) RedoLast(replay InvertFunc) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.redo) == 0 {
		return false, nil
	}
	action := l.redo[len(l.redo)-1]
	if !replay(action) {
		return false, nil
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, action)
	return true, l.persist()
}

// CanUndo, CanRedo, UndoCount, RedoCount and Clear expose §6's inspection
// surface.

func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

func (l *Log) UndoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo)
}

func (l *Log) RedoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo)
}

func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = nil
	l.redo = nil
	return l.persist()
}

func (l *Log) persist() error {
	if err := atomicfile.WriteJSON(l.undoPath, persisted{Undo: l.undo}); err != nil {
		return err
	}
	return atomicfile.WriteJSON(l.redoPath, persisted{Redo: l.redo})
}
