package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/conflict"
	"github.com/babarot/storax/internal/config"
	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/lock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Progress reports one copy engine advancement, streamed to the caller so
// it can observe a long-running transactional copy (§4.11).
type Progress struct {
	Source string
	Target string
	Copied int64
	Total  int64
	Done   bool
	Err    error
}

// CopyControl flips cancellation/pause flags for one in-flight
// transactional copy job; flips take effect at the next chunk boundary
// (§5).
type CopyControl struct {
	cancelled atomic.Bool
	paused    atomic.Bool
}

func (c *CopyControl) Cancel()           { c.cancelled.Store(true) }
func (c *CopyControl) Pause()            { c.paused.Store(true) }
func (c *CopyControl) Resume()           { c.paused.Store(false) }
func (c *CopyControl) isCancelled() bool { return c.cancelled.Load() }
func (c *CopyControl) isPaused() bool    { return c.paused.Load() }

// Handle is what CopyAdaptive returns: either a completed quick-copy
// (Adaptive=false, Progress already closed with one final entry) or a
// live transactional job whose Progress channel streams until closed.
type Handle struct {
	JobID    string
	Adaptive bool
	Progress <-chan Progress
}

// CopyEngine is the adaptive copy engine (§4.11): quick-copy below a
// measured write-speed threshold, WAL-backed transactional copy above it,
// resumable from the WAL directory after a crash.
//
// Handle-backend locations are out of scope: §4.3 notes the handle
// backend has no random I/O, and the wider system routes such transfers
// through a streamed variant outside this core.
type CopyEngine struct {
	Detector backend.Detector
	Locks    *lock.Manager
	WALDir   string
	CacheDir string
	Config   config.Copy

	jobs sync.Map // jobID -> *CopyControl

	probeOnce  sync.Once
	threshold  int64
}

func (e *CopyEngine) resolvedThreshold() int64 {
	e.probeOnce.Do(func() {
		bps, err := measureWriteSpeed(e.CacheDir, e.Config.WriteSpeedProbeBytes)
		if err != nil {
			e.threshold = e.Config.FallbackThresholdBytes
			return
		}
		e.threshold = int64(e.Config.AdaptiveThresholdFactor * bps)
	})
	return e.threshold
}

// CopyAdaptive is the copy engine's public entry (§4.11 phase 1).
func (e *CopyEngine) CopyAdaptive(ctx context.Context, source, destParent, newName string, policy types.ConflictPolicy, manual string, forceProgress bool) (*Handle, error) {
	if backend.DetectKind(source) != types.BackendPath || backend.DetectKind(destParent) != types.BackendPath {
		return nil, types.NewOpError("copy", source, types.ErrBackendUnsupported)
	}

	key := lock.Key("copy", source, destParent+"/"+newName)
	release, err := e.Locks.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	b := e.Detector.Resolve(source)
	if !b.Exists(ctx, source) {
		release()
		return nil, types.NewOpError("copy", source, types.ErrNotFound)
	}
	if !b.Exists(ctx, destParent) {
		release()
		return nil, types.NewOpError("copy", destParent, types.ErrNotFound)
	}

	final, ok := conflict.Resolve(func(n string) bool {
		return b.Exists(ctx, filepath.Join(destParent, n))
	}, newName, policy, manual)
	if !ok {
		release()
		return nil, types.NewOpError("copy", filepath.Join(destParent, newName), types.ErrConflictDeclined)
	}
	target := filepath.Join(destParent, final)

	srcNode, err := b.Stat(ctx, source)
	if err != nil {
		release()
		return nil, err
	}

	total, err := totalBytes(source, srcNode)
	if err != nil {
		release()
		return nil, err
	}

	adaptive := srcNode.IsDirectory || total > e.resolvedThreshold() || forceProgress

	if !adaptive {
		defer release()
		progress := make(chan Progress, 1)
		var copyErr error
		if srcNode.IsDirectory {
			copyErr = quickCopyDirectory(source, target)
		} else {
			copyErr = quickCopyFile(source, target)
		}
		progress <- Progress{Source: source, Target: target, Copied: total, Total: total, Done: true, Err: copyErr}
		close(progress)
		return &Handle{Adaptive: false, Progress: progress}, copyErr
	}

	jobID := uuid.New().String()
	control := &CopyControl{}
	e.jobs.Store(jobID, control)

	rec := copyWALRecord{JobID: jobID, Source: source, Target: target, Total: total, IsDirectory: srcNode.IsDirectory}
	if err := e.writeWAL(rec); err != nil {
		e.jobs.Delete(jobID)
		release()
		return nil, err
	}

	progress := make(chan Progress, 16)
	go func() {
		defer release()
		defer e.jobs.Delete(jobID)
		if srcNode.IsDirectory {
			e.runDirectoryCopy(ctx, control, rec, progress)
		} else {
			e.runFileCopy(ctx, control, rec, progress)
		}
	}()

	return &Handle{JobID: jobID, Adaptive: true, Progress: progress}, nil
}

// Cancel, Pause and Resume flip a job's control flags; they report false
// for unknown jobs (§4.11 controls).
func (e *CopyEngine) Cancel(jobID string) bool { return e.withControl(jobID, (*CopyControl).Cancel) }
func (e *CopyEngine) Pause(jobID string) bool  { return e.withControl(jobID, (*CopyControl).Pause) }
func (e *CopyEngine) Resume(jobID string) bool { return e.withControl(jobID, (*CopyControl).Resume) }

func (e *CopyEngine) withControl(jobID string, fn func(*CopyControl)) bool {
	v, ok := e.jobs.Load(jobID)
	if !ok {
		return false
	}
	fn(v.(*CopyControl))
	return true
}

func totalBytes(location string, node types.Node) (int64, error) {
	if !node.IsDirectory {
		return node.Size, nil
	}
	return dirSize(location)
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// quickCopyFile copies src to dst byte-for-byte, then verifies SHA-256
// equality; on mismatch it deletes dst and fails (§4.11).
func quickCopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return verifyOrCleanup(src, dst)
}

// quickCopyDirectory recurses src into dst via the path backend's native
// copy primitive, then verifies each file's SHA-256 (§4.11: "directory
// quick-copy recurses").
func quickCopyDirectory(src, dst string) error {
	if err := backend.QuickCopyDirectory(src, dst); err != nil {
		return err
	}

	var mismatch error
	walkErr := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		srcHash, err := sha256File(path)
		if err != nil {
			return err
		}
		dstHash, err := sha256File(filepath.Join(dst, rel))
		if err != nil {
			return err
		}
		if srcHash != dstHash {
			mismatch = fmt.Errorf("%w: %s", types.ErrIntegrityMismatch, rel)
			return mismatch
		}
		return nil
	})
	if walkErr != nil {
		os.RemoveAll(dst)
		if mismatch != nil {
			return mismatch
		}
		return walkErr
	}
	return nil
}

func verifyOrCleanup(src, dst string) error {
	srcHash, err := sha256File(src)
	if err != nil {
		return err
	}
	dstHash, err := sha256File(dst)
	if err != nil {
		return err
	}
	if srcHash != dstHash {
		os.Remove(dst)
		return types.ErrIntegrityMismatch
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// runFileCopy executes the transactional copy loop for a single file
// (§4.11 execution loop).
func (e *CopyEngine) runFileCopy(ctx context.Context, control *CopyControl, rec copyWALRecord, progress chan<- Progress) {
	defer close(progress)

	copied := int64(0)
	if info, err := os.Stat(rec.Target); err == nil {
		copied = min64(info.Size(), rec.Total)
	}

	in, err := os.Open(rec.Source)
	if err != nil {
		progress <- Progress{Source: rec.Source, Target: rec.Target, Done: true, Err: err}
		return
	}
	defer in.Close()

	out, err := os.OpenFile(rec.Target, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		progress <- Progress{Source: rec.Source, Target: rec.Target, Done: true, Err: err}
		return
	}
	defer out.Close()

	if _, err := in.Seek(copied, io.SeekStart); err != nil {
		progress <- Progress{Source: rec.Source, Target: rec.Target, Done: true, Err: err}
		return
	}
	if _, err := out.Seek(copied, io.SeekStart); err != nil {
		progress <- Progress{Source: rec.Source, Target: rec.Target, Done: true, Err: err}
		return
	}

	buf := make([]byte, e.Config.ChunkSizeBytes)
	lastSync := copied

	for copied < rec.Total {
		if control.isCancelled() {
			e.cleanupFileJob(rec)
			progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true, Err: types.ErrCancelled}
			return
		}
		for control.isPaused() {
			time.Sleep(e.Config.PausePollInterval)
			if control.isCancelled() {
				e.cleanupFileJob(rec)
				progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true, Err: types.ErrCancelled}
				return
			}
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true, Err: err}
				return
			}
			copied += int64(n)
			progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total}

			if copied-lastSync >= e.Config.WALSyncBytes {
				rec.CopiedBytes = copied
				if err := e.writeWAL(rec); err == nil {
					lastSync = copied
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true, Err: readErr}
			return
		}
	}

	if err := out.Sync(); err != nil {
		progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true, Err: err}
		return
	}

	if err := verifyOrCleanup(rec.Source, rec.Target); err != nil {
		e.removeWAL(rec.JobID)
		progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true, Err: err}
		return
	}

	e.removeWAL(rec.JobID)
	progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total, Done: true}
}

func (e *CopyEngine) cleanupFileJob(rec copyWALRecord) {
	os.Remove(rec.Target)
	e.removeWAL(rec.JobID)
}

// dirCopyState tracks the bytes copied across an entire directory tree
// and throttles WAL syncs, shared by every worker in the bounded pool
// that streams its files concurrently (§5 dedicated I/O pool).
type dirCopyState struct {
	copied   atomic.Int64
	mu       sync.Mutex
	lastSync int64
}

func newDirCopyState(initial int64) *dirCopyState {
	s := &dirCopyState{lastSync: initial}
	s.copied.Store(initial)
	return s
}

func (s *dirCopyState) add(delta int64) int64 { return s.copied.Add(delta) }
func (s *dirCopyState) value() int64          { return s.copied.Load() }

func (s *dirCopyState) maybeSyncWAL(e *CopyEngine, rec copyWALRecord, currentFile string, copied int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if copied-s.lastSync < e.Config.WALSyncBytes {
		return
	}
	rec.CopiedBytes = copied
	rec.CurrentFile = currentFile
	if err := e.writeWAL(rec); err == nil {
		s.lastSync = copied
	}
}

// runDirectoryCopy executes the transactional copy loop for a directory
// tree: enumerate files top-down, then stream them through a bounded
// worker pool, with copied_bytes running globally across the whole tree
// (§4.11 execution loop, directory variant; §5 dedicated I/O pool).
func (e *CopyEngine) runDirectoryCopy(ctx context.Context, control *CopyControl, rec copyWALRecord, progress chan<- Progress) {
	defer close(progress)

	var files []string
	walkErr := filepath.Walk(rec.Source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		progress <- Progress{Source: rec.Source, Target: rec.Target, Done: true, Err: walkErr}
		return
	}

	concurrency := e.Config.DirCopyConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	state := newDirCopyState(0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, srcFile := range files {
		srcFile := srcFile
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			rel, err := filepath.Rel(rec.Source, srcFile)
			if err != nil {
				return err
			}
			dstFile := filepath.Join(rec.Target, rel)
			if err := os.MkdirAll(filepath.Dir(dstFile), 0o755); err != nil {
				return err
			}
			return e.streamOneFile(control, srcFile, dstFile, state, rec, progress)
		})
	}

	if err := g.Wait(); err != nil {
		e.cleanupDirectoryJob(rec)
		progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: state.value(), Total: rec.Total, Done: true, Err: err}
		return
	}

	if err := verifyDirectoryTotals(rec.Source, rec.Target); err != nil {
		e.cleanupDirectoryJob(rec)
		progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: state.value(), Total: rec.Total, Done: true, Err: err}
		return
	}

	e.removeWAL(rec.JobID)
	progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: state.value(), Total: rec.Total, Done: true}
}

// streamOneFile copies one file of a directory transfer, advancing the
// shared state's copied counter and honoring cancel/pause at chunk
// granularity. It runs concurrently with its siblings in the directory's
// worker pool, so all shared bookkeeping goes through state.
func (e *CopyEngine) streamOneFile(control *CopyControl, src, dst string, state *dirCopyState, rec copyWALRecord, progress chan<- Progress) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, e.Config.ChunkSizeBytes)

	for {
		if control.isCancelled() {
			return types.ErrCancelled
		}
		for control.isPaused() {
			time.Sleep(e.Config.PausePollInterval)
			if control.isCancelled() {
				return types.ErrCancelled
			}
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
			copied := state.add(int64(n))
			progress <- Progress{Source: rec.Source, Target: rec.Target, Copied: copied, Total: rec.Total}
			state.maybeSyncWAL(e, rec, src, copied)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return readErr
		}
	}

	return out.Sync()
}

func (e *CopyEngine) cleanupDirectoryJob(rec copyWALRecord) {
	os.RemoveAll(rec.Target)
	e.removeWAL(rec.JobID)
}

func verifyDirectoryTotals(src, dst string) error {
	srcTotal, err := dirSize(src)
	if err != nil {
		return err
	}
	dstTotal, err := dirSize(dst)
	if err != nil {
		return err
	}
	if srcTotal != dstTotal {
		return types.ErrIntegrityMismatch
	}
	return nil
}

// RecoverJobs restarts every interrupted transactional copy found in the
// WAL directory, locking the job's source and target and yielding one
// progress stream per job (§4.11 recovery). A file copy resumes from the
// target's current length (capped at the total); a directory copy streams
// every file again from its start.
func (e *CopyEngine) RecoverJobs(ctx context.Context) ([]*Handle, error) {
	recs, err := e.listWALRecords()
	if err != nil {
		return nil, err
	}

	var handles []*Handle
	for _, rec := range recs {
		key := lock.Key("copy", rec.Source, rec.Target)
		release, err := e.Locks.Acquire(ctx, key)
		if err != nil {
			continue
		}

		control := &CopyControl{}
		e.jobs.Store(rec.JobID, control)

		progress := make(chan Progress, 16)
		recCopy := rec
		go func() {
			defer release()
			defer e.jobs.Delete(recCopy.JobID)
			if recCopy.IsDirectory {
				e.runDirectoryCopy(ctx, control, recCopy, progress)
			} else {
				e.runFileCopy(ctx, control, recCopy, progress)
			}
		}()

		handles = append(handles, &Handle{JobID: rec.JobID, Adaptive: true, Progress: progress})
	}

	return handles, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
