package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/babarot/storax/internal/atomicfile"
	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/conflict"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/lock"
	"github.com/google/uuid"
)

// movePhase tags a move-WAL record's stage (§4.12).
type movePhase string

const (
	phaseCopying  movePhase = "COPYING"
	phaseDeleting movePhase = "DELETING"
)

type moveWALRecord struct {
	JobID       string    `json:"job_id"`
	Phase       movePhase `json:"phase"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
}

// MoveEngine drives both the same-device atomic rename shortcut and the
// cross-device two-phase (COPYING -> DELETING) transaction (§4.12).
//
// Handle-backend locations are out of scope here for the same reason as
// CopyEngine (§4.3): the handle backend has no random I/O, so a move
// touching it is routed through a streamed variant outside this core.
type MoveEngine struct {
	Detector backend.Detector
	Locks    *lock.Manager
	Copy     *CopyEngine
	WALDir   string
}

func (e *MoveEngine) walPath(jobID string) string {
	return filepath.Join(e.WALDir, fmt.Sprintf("%s.wal", jobID))
}

// Move resolves the final name against destParent, then either performs
// a single atomic rename (source and destParent share a device) or a
// WAL-backed copy-then-delete transaction (§4.12).
func (e *MoveEngine) Move(ctx context.Context, source, destParent, newName string, policy types.ConflictPolicy, manual string) (bool, error) {
	if backend.DetectKind(source) != types.BackendPath || backend.DetectKind(destParent) != types.BackendPath {
		return false, types.NewOpError("move", source, types.ErrBackendUnsupported)
	}

	key := lock.Key("move", source, destParent+"/"+newName)
	release, err := e.Locks.Acquire(ctx, key)
	if err != nil {
		return false, err
	}
	defer release()

	b := e.Detector.Resolve(source)
	final, ok := conflict.Resolve(func(n string) bool {
		return b.Exists(ctx, filepath.Join(destParent, n))
	}, newName, policy, manual)
	if !ok {
		return false, types.NewOpError("move", filepath.Join(destParent, newName), types.ErrConflictDeclined)
	}
	target := filepath.Join(destParent, final)

	sameDevice, err := backend.SameDevice(source, target)
	if err == nil && sameDevice {
		if policy == types.PolicyReplace {
			os.RemoveAll(target)
		}
		if err := os.Rename(source, target); err != nil {
			return false, types.NewOpError("move", source, types.NewIOError(err))
		}
		return true, nil
	}

	return e.crossDeviceMove(ctx, source, target)
}

func (e *MoveEngine) crossDeviceMove(ctx context.Context, source, target string) (bool, error) {
	jobID := uuid.New().String()
	rec := moveWALRecord{JobID: jobID, Phase: phaseCopying, Source: source, Destination: target}
	if err := e.writeMoveWAL(rec); err != nil {
		return false, err
	}

	if err := e.runCrossDeviceCopy(ctx, source, target); err != nil {
		return false, err
	}

	rec.Phase = phaseDeleting
	if err := e.writeMoveWAL(rec); err != nil {
		return false, err
	}

	b := e.Detector.Resolve(source)
	if _, err := b.Delete(ctx, source); err != nil {
		// Best-effort cleanup of the destination, then clear the WAL so
		// recovery does not retry the source delete (§4.12).
		os.RemoveAll(target)
		e.removeMoveWAL(jobID)
		return false, fmt.Errorf("delete source after cross-device move: %w", err)
	}

	if err := e.removeMoveWAL(jobID); err != nil {
		return false, err
	}
	return true, nil
}

func (e *MoveEngine) runCrossDeviceCopy(ctx context.Context, source, target string) error {
	destParent := filepath.Dir(target)
	handle, err := e.Copy.CopyAdaptive(ctx, source, destParent, filepath.Base(target), types.PolicyReplace, "", false)
	if err != nil {
		return err
	}
	var last Progress
	for p := range handle.Progress {
		last = p
	}
	return last.Err
}

func (e *MoveEngine) writeMoveWAL(rec moveWALRecord) error {
	return atomicfile.WriteJSON(e.walPath(rec.JobID), rec)
}

func (e *MoveEngine) removeMoveWAL(jobID string) error {
	if err := atomicfile.Remove(e.walPath(jobID)); err != nil {
		return err
	}
	return atomicfile.SyncDir(e.WALDir)
}

// RecoverMoves inspects every move-WAL record: a COPYING record restarts
// the cross-device copy (the copy engine's own WAL makes the inner copy
// idempotent); a DELETING record retries the source delete (§4.12
// recovery).
func (e *MoveEngine) RecoverMoves(ctx context.Context) error {
	entries, err := os.ReadDir(e.WALDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		path := filepath.Join(e.WALDir, ent.Name())
		var rec moveWALRecord
		if err := atomicfile.ReadJSON(path, &rec); err != nil {
			atomicfile.Remove(path)
			continue
		}

		switch rec.Phase {
		case phaseCopying:
			if err := e.runCrossDeviceCopy(ctx, rec.Source, rec.Destination); err != nil {
				continue
			}
			rec.Phase = phaseDeleting
			if err := e.writeMoveWAL(rec); err != nil {
				continue
			}
			fallthrough
		case phaseDeleting:
			b := e.Detector.Resolve(rec.Source)
			if b.Exists(ctx, rec.Source) {
				if _, err := b.Delete(ctx, rec.Source); err != nil {
					continue
				}
			}
			e.removeMoveWAL(rec.JobID)
		}
	}

	return nil
}
