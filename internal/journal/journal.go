// Package journal implements the pending-operation recovery log for
// storax's non-transactional mutations (create, rename), per spec §4.6.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/babarot/storax/internal/atomicfile"
	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/google/uuid"
)

// Kind tags a journal record's operation.
type Kind string

const (
	KindCreate Kind = "create"
	KindRename Kind = "rename"
)

// Record is one pending-operation entry (§3). A record file exists on disk
// if and only if the operation it describes may still need replay.
type Record struct {
	Kind      Kind `json:"kind"`
	Completed bool `json:"completed"`

	// create payload
	Parent   string               `json:"parent,omitempty"`
	Name     string               `json:"name,omitempty"`
	NodeType types.NodeType       `json:"node_type,omitempty"`
	Policy   types.ConflictPolicy `json:"policy,omitempty"`
	Manual   string               `json:"manual,omitempty"`
	Target   string               `json:"target,omitempty"` // not set by BeginCreate; recovery derives the target from Parent and Name

	// rename payload
	Source  string `json:"source,omitempty"`
	NewName string `json:"new_name,omitempty"`

	path string // set on Begin/load; not persisted
}

// Journal manages the on-disk pending-operation log under dir.
type Journal struct {
	dir string
}

// New creates a Journal rooted at dir, creating it if necessary.
func New(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
	}
	return &Journal{dir: dir}, nil
}

// BeginCreate writes a create journal record before the backend call.
func (j *Journal) BeginCreate(parent, name string, nodeType types.NodeType, policy types.ConflictPolicy, manual string) (*Record, error) {
	rec := &Record{
		Kind:     KindCreate,
		Parent:   parent,
		Name:     name,
		NodeType: nodeType,
		Policy:   policy,
		Manual:   manual,
		path:     j.recordPath(),
	}
	if err := j.write(rec); err != nil {
		return nil, err
	}
	slog.Debug("journal begin create", "parent", parent, "name", name, "path", rec.path)
	return rec, nil
}

// BeginRename writes a rename journal record before the backend call.
func (j *Journal) BeginRename(source, newName string, policy types.ConflictPolicy, manual string) (*Record, error) {
	rec := &Record{
		Kind:    KindRename,
		Source:  source,
		NewName: newName,
		Policy:  policy,
		Manual:  manual,
		path:    j.recordPath(),
	}
	if err := j.write(rec); err != nil {
		return nil, err
	}
	slog.Debug("journal begin rename", "source", source, "new_name", newName, "path", rec.path)
	return rec, nil
}

// Commit marks rec completed and removes its file, using the same
// atomic-rename-then-fsync-dir protocol as the write (§3 invariant).
func (j *Journal) Commit(rec *Record) error {
	rec.Completed = true
	if err := j.write(rec); err != nil {
		return err
	}
	if err := atomicfile.Remove(rec.path); err != nil {
		return fmt.Errorf("remove journal record %s: %w", rec.path, err)
	}
	return atomicfile.SyncDir(j.dir)
}

// Abandon removes rec's file without marking it completed, used when the
// backend call failed outright and recovery has nothing useful to do with
// it (the operation plainly did not happen).
func (j *Journal) Abandon(rec *Record) error {
	if err := atomicfile.Remove(rec.path); err != nil {
		return fmt.Errorf("remove journal record %s: %w", rec.path, err)
	}
	return atomicfile.SyncDir(j.dir)
}

func (j *Journal) recordPath() string {
	return filepath.Join(j.dir, fmt.Sprintf("%s.json", uuid.New().String()))
}

func (j *Journal) write(rec *Record) error {
	return atomicfile.WriteJSON(rec.path, rec)
}

// Recover drains the journal directory at startup, before new work is
// admitted (§4.6). For each record:
//   - unparsable -> delete
//   - completed -> delete
//   - rename, source present & target absent -> retry rename with REPLACE
//   - rename, source absent & target present -> already effective, delete
//   - rename, both present -> ambiguous, left for next startup
//   - create, target already present -> delete
//   - create, target absent -> retry create with FAIL
func Recover(ctx context.Context, dir string, det backend.Detector) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read journal directory %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		var rec Record
		if err := atomicfile.ReadJSON(path, &rec); err != nil {
			slog.Warn("journal recovery: unparsable record, discarding", "path", path, "error", err)
			atomicfile.Remove(path)
			continue
		}
		rec.path = path

		if rec.Completed {
			atomicfile.Remove(path)
			continue
		}

		switch rec.Kind {
		case KindRename:
			recoverRename(ctx, det, &rec)
		case KindCreate:
			recoverCreate(ctx, det, &rec)
		default:
			slog.Warn("journal recovery: unknown kind, discarding", "path", path, "kind", rec.Kind)
			atomicfile.Remove(path)
		}
	}

	return atomicfile.SyncDir(dir)
}

func recoverRename(ctx context.Context, det backend.Detector, rec *Record) {
	b := det.Resolve(rec.Source)
	sourceExists := b.Exists(ctx, rec.Source)
	targetDir := filepath.Dir(rec.Source)
	targetPath := filepath.Join(targetDir, rec.NewName)
	targetExists := b.Exists(ctx, targetPath)

	switch {
	case sourceExists && !targetExists:
		if _, err := b.Rename(ctx, rec.Source, rec.NewName, types.PolicyReplace, ""); err != nil {
			slog.Error("journal recovery: retry rename failed, leaving for next startup", "source", rec.Source, "error", err)
			return
		}
		atomicfile.Remove(rec.path)
	case !sourceExists && targetExists:
		// Operation already took effect before the crash.
		atomicfile.Remove(rec.path)
	case !sourceExists && !targetExists:
		// Neither side exists; nothing to redrive.
		atomicfile.Remove(rec.path)
	default:
		slog.Warn("journal recovery: rename record ambiguous (both source and target exist), leaving for next startup", "source", rec.Source, "target", targetPath)
	}
}

func recoverCreate(ctx context.Context, det backend.Detector, rec *Record) {
	b := det.Resolve(rec.Parent)
	target := filepath.Join(rec.Parent, rec.Name)
	if b.Exists(ctx, target) {
		atomicfile.Remove(rec.path)
		return
	}
	if _, err := b.Create(ctx, rec.Parent, rec.Name, rec.NodeType, types.PolicyFail, ""); err != nil {
		slog.Error("journal recovery: retry create failed, leaving for next startup", "parent", rec.Parent, "name", rec.Name, "error", err)
		return
	}
	atomicfile.Remove(rec.path)
}
