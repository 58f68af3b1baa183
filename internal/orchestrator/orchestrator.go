// Package orchestrator wires locks, backends, engines, the undo log,
// trash manager and journal into the single facade that drives every
// public storax operation (§4.13).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/config"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/engine"
	"github.com/babarot/storax/internal/journal"
	"github.com/babarot/storax/internal/list"
	"github.com/babarot/storax/internal/lock"
	"github.com/babarot/storax/internal/trash"
	"github.com/babarot/storax/internal/undo"
)

// Orchestrator owns the undo log and registers the undo actions of
// Create, Rename, Move and Copy (DeleteEngine registers Delete's itself);
// each engine acquires its own operation lock. It selects backends via
// Detector and drives every engine.
type Orchestrator struct {
	Config   *config.Config
	Detector backend.Detector
	Locks    *lock.Manager
	Journal  *journal.Journal
	Trash    *trash.Manager
	UndoLog  *undo.Log

	CreateEngine *engine.CreateEngine
	RenameEngine *engine.RenameEngine
	DeleteEngine *engine.DeleteEngine
	CopyEngine   *engine.CopyEngine
	MoveEngine   *engine.MoveEngine
}

// Options lets callers override the media-index notifier and opt into a
// handle backend instance (tests and a real document-tree integration
// both construct their own).
type Options struct {
	Notifier      backend.MediaIndexNotifier
	HandleBackend *backend.HandleBackend
}

// New builds a fully wired Orchestrator from cfg, creating every
// directory it owns (§5: "journal, undo, and WAL directories are
// writable only by their owning components").
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	for _, dir := range []string{
		cfg.Paths.JournalDir(),
		cfg.Paths.CopyWALDir(),
		cfg.Paths.MoveWALDir(),
		cfg.Paths.UndoDir(),
		trashDir(cfg),
		cacheDir(cfg),
	} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	pathBackend := backend.NewPathBackend(opts.Notifier)
	det := backend.Detector{Path: pathBackend}
	if opts.HandleBackend != nil {
		det.Handle = opts.HandleBackend
	}

	locks := lock.New(cfg.Lock.Timeout)

	j, err := journal.New(cfg.Paths.JournalDir())
	if err != nil {
		return nil, err
	}

	store := trash.NewStore(cfg.Paths.TrashIndexPath())
	trashManager, err := trash.NewManager(store, det, trash.Options{
		TrashDir: trashDir(cfg),
		MaxAge:   cfg.Trash.MaxAge,
		MaxSize:  cfg.Trash.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	undoLog, err := undo.Open(
		filepath.Join(cfg.Paths.UndoDir(), "undo.json"),
		filepath.Join(cfg.Paths.UndoDir(), "redo.json"),
		cfg.Undo.Capacity,
	)
	if err != nil {
		return nil, err
	}

	createEngine := &engine.CreateEngine{Detector: det, Locks: locks, Journal: j}
	renameEngine := &engine.RenameEngine{Detector: det, Locks: locks, Journal: j}
	deleteEngine := &engine.DeleteEngine{Detector: det, Locks: locks, Trash: trashManager, Undo: undoLog}
	copyEngine := &engine.CopyEngine{
		Detector: det,
		Locks:    locks,
		WALDir:   cfg.Paths.CopyWALDir(),
		CacheDir: cacheDir(cfg),
		Config:   cfg.Copy,
	}
	moveEngine := &engine.MoveEngine{Detector: det, Locks: locks, Copy: copyEngine, WALDir: cfg.Paths.MoveWALDir()}

	return &Orchestrator{
		Config:       cfg,
		Detector:     det,
		Locks:        locks,
		Journal:      j,
		Trash:        trashManager,
		UndoLog:      undoLog,
		CreateEngine: createEngine,
		RenameEngine: renameEngine,
		DeleteEngine: deleteEngine,
		CopyEngine:   copyEngine,
		MoveEngine:   moveEngine,
	}, nil
}

func trashDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.AppDir, cfg.Paths.AppTrashDirname)
}

func cacheDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.AppDir, "cache")
}

// ListDirectory returns the immediate children of target.
func (o *Orchestrator) ListDirectory(ctx context.Context, target string) ([]types.Node, error) {
	return list.Directory(ctx, o.Detector, target)
}

// TraverseDirectory walks target breadth-first to maxDepth (-1 for
// unlimited).
func (o *Orchestrator) TraverseDirectory(ctx context.Context, target string, maxDepth int) ([]types.Node, error) {
	return list.Traverse(ctx, o.Detector, target, maxDepth)
}

// ListTrash returns every entry currently recorded in the trash index.
func (o *Orchestrator) ListTrash() ([]types.TrashEntry, error) {
	return o.Trash.List()
}

// RestoreFromTrash restores entry to its original location.
func (o *Orchestrator) RestoreFromTrash(ctx context.Context, entry types.TrashEntry) error {
	return o.Trash.Restore(ctx, entry)
}

// PermanentlyDeleteFromTrash purges entry via the delete engine.
func (o *Orchestrator) PermanentlyDeleteFromTrash(ctx context.Context, entry types.TrashEntry) error {
	return o.DeleteEngine.PermanentDeleteFromTrash(ctx, entry)
}

// EmptyTrash iterates the trash index and permanent-deletes every entry,
// returning the conjunction of outcomes (§4.13).
func (o *Orchestrator) EmptyTrash(ctx context.Context) (bool, error) {
	entries, err := o.Trash.List()
	if err != nil {
		return false, err
	}
	ok := true
	for _, e := range entries {
		if err := o.DeleteEngine.PermanentDeleteFromTrash(ctx, e); err != nil {
			ok = false
		}
	}
	return ok, nil
}

// RecoverPendingOperations runs journal recovery, then aggregates
// copy/move WAL recovery streams (§4.13).
func (o *Orchestrator) RecoverPendingOperations(ctx context.Context) ([]*engine.Handle, error) {
	if err := journal.Recover(ctx, o.Config.Paths.JournalDir(), o.Detector); err != nil {
		return nil, fmt.Errorf("journal recovery: %w", err)
	}

	handles, err := o.CopyEngine.RecoverJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("copy recovery: %w", err)
	}

	if err := o.MoveEngine.RecoverMoves(ctx); err != nil {
		return nil, fmt.Errorf("move recovery: %w", err)
	}

	return handles, nil
}
