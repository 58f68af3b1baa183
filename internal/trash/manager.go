package trash

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/k1LoW/duration"
	"github.com/samber/lo"
)

// Manager moves objects into a private per-app trash area, enforces
// age/size quotas, and supports restore/list/empty (§4.4).
type Manager struct {
	store    *Store
	detector backend.Detector
	trashDir string // per-app parked-object root, same backend family as originals
	maxAge   time.Duration
	maxSize  int64
}

// Options configures a Manager's eviction policy.
type Options struct {
	TrashDir string
	MaxAge   string // human duration, e.g. "30 days"
	MaxSize  string // human size parsed as binary (§4.4), e.g. "5GiB"
}

// NewManager builds a Manager, parsing the human-readable age/size limits
// with the same libraries the config loader validates them with.
func NewManager(store *Store, det backend.Detector, opts Options) (*Manager, error) {
	age, err := duration.Parse(opts.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("parse trash max age %q: %w", opts.MaxAge, err)
	}
	size, err := units.RAMInBytes(opts.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("parse trash max size %q: %w", opts.MaxSize, err)
	}
	return &Manager{
		store:    store,
		detector: det,
		trashDir: opts.TrashDir,
		maxAge:   age,
		maxSize:  size,
	}, nil
}

// MoveToTrash computes a unique id, forms a parked name under the per-app
// trash directory, attempts a rename, and falls back to copy-then-delete
// if the rename fails (§4.4). On success it appends a trash entry and
// enforces the age/quota eviction policies.
func (m *Manager) MoveToTrash(ctx context.Context, location string) (types.TrashEntry, error) {
	b := m.detector.Resolve(location)

	node, err := b.Stat(ctx, location)
	if err != nil {
		return types.TrashEntry{}, fmt.Errorf("stat %s: %w", location, err)
	}

	id := uuid.New().String()
	displayName := node.Name
	parkedName := fmt.Sprintf("%s_%s", id, displayName)

	parked, err := m.parkObject(ctx, b, location, parkedName, node)
	if err != nil {
		return types.TrashEntry{}, fmt.Errorf("park %s: %w", location, err)
	}

	entry := types.TrashEntry{
		ID:               id,
		DisplayName:      displayName,
		BackendKind:      b.Kind(),
		IsDirectory:      node.IsDirectory,
		TrashedAt:        time.Now().UnixMilli(),
		Size:             node.Size,
		OriginalLocation: location,
		ParkedLocation:   parked,
	}

	if err := m.store.Add(entry); err != nil {
		return types.TrashEntry{}, fmt.Errorf("record trash entry: %w", err)
	}

	if err := m.enforcePolicies(ctx); err != nil {
		slog.Warn("trash eviction policy failed", "error", err)
	}

	return entry, nil
}

// parkObject moves the object into the per-app trash directory (§3, §4.4).
// Backend.Rename only ever changes a node's name within its current
// directory (PathBackend.Rename resolves the target against
// filepath.Dir(source)), so it cannot land the object under trashDir;
// parking instead mirrors the move engine's same-device rename shortcut
// (internal/engine/move.go) and falls back to copy-then-delete when the
// trash directory is a different device, or a different backend kind
// entirely.
func (m *Manager) parkObject(ctx context.Context, b backend.Backend, location, parkedName string, node types.Node) (string, error) {
	target := filepath.Join(m.trashDir, parkedName)

	if b.Kind() == types.BackendPath {
		if sameDevice, err := backend.SameDevice(location, target); err == nil && sameDevice {
			if err := os.Rename(location, target); err == nil {
				return target, nil
			}
		}
	}

	// Same-device rename unavailable (cross-device, or a backend kind
	// with no raw filesystem rename); fall back to copy-then-delete into
	// the trash root.
	nodeType := types.NodeFile
	if node.IsDirectory {
		nodeType = types.NodeDirectory
	}
	res, err := b.Create(ctx, m.trashDir, parkedName, nodeType, types.PolicyFail, "")
	if err != nil {
		return "", err
	}
	if err := copyShallow(ctx, b, location, res.Location, node); err != nil {
		return "", err
	}
	if _, err := b.Delete(ctx, location); err != nil {
		return "", fmt.Errorf("delete original after park copy: %w", err)
	}
	return res.Location, nil
}

// copyShallow is a minimal same-backend copy used only to park an object
// into trash (or restore it) when a rename across directories isn't
// possible; it is not the adaptive, resumable, verified copy engine that
// serves user-facing copy/move requests (internal/engine).
func copyShallow(ctx context.Context, b backend.Backend, src, dst string, node types.Node) error {
	pb, ok := b.(backend.ShallowCopier)
	if !ok {
		return fmt.Errorf("backend does not support fallback park copy")
	}
	return pb.CopyShallow(ctx, src, dst, node.IsDirectory)
}

// enforcePolicies purges entries older than maxAge, then purges the
// oldest remaining entries while total parked size exceeds maxSize
// (§4.4). Purge removes the parked object (when the backend still has
// it) before removing the index row.
func (m *Manager) enforcePolicies(ctx context.Context) error {
	entries, err := m.store.All()
	if err != nil {
		return err
	}

	now := time.Now()
	expired := lo.Filter(entries, func(e types.TrashEntry, _ int) bool {
		return now.Sub(e.TrashedAtTime()) > m.maxAge
	})
	for _, e := range expired {
		if err := m.purge(ctx, e); err != nil {
			slog.Warn("age eviction purge failed", "id", e.ID, "error", err)
		}
	}

	entries, err = m.store.All()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TrashedAt < entries[j].TrashedAt })

	total := lo.SumBy(entries, func(e types.TrashEntry) int64 { return e.Size })
	for total > m.maxSize && len(entries) > 0 {
		oldest := entries[0]
		if err := m.purge(ctx, oldest); err != nil {
			slog.Warn("quota eviction purge failed", "id", oldest.ID, "error", err)
		}
		total -= oldest.Size
		entries = entries[1:]
	}

	return nil
}

func (m *Manager) purge(ctx context.Context, e types.TrashEntry) error {
	b := m.detector.Resolve(e.ParkedLocation)
	if b.Exists(ctx, e.ParkedLocation) {
		if _, err := b.Delete(ctx, e.ParkedLocation); err != nil {
			return fmt.Errorf("delete parked object: %w", err)
		}
	}
	_, _, err := m.store.Remove(e.ID)
	return err
}

// Restore recreates the parent directory chain of original_location, then
// renames or copy+deletes the parked object back, and removes the entry.
// Restore is best-effort on the handle backend (§4.4).
func (m *Manager) Restore(ctx context.Context, entry types.TrashEntry) error {
	b := m.detector.Resolve(entry.OriginalLocation)

	dir := filepath.Dir(entry.OriginalLocation)
	if err := ensureDirChain(ctx, b, dir); err != nil {
		return fmt.Errorf("recreate parent chain: %w", err)
	}

	parkedDir := filepath.Dir(entry.ParkedLocation)
	if parkedDir == dir {
		if _, err := b.Rename(ctx, entry.ParkedLocation, entry.DisplayName, types.PolicyFail, ""); err != nil {
			return fmt.Errorf("restore rename: %w", err)
		}
		_, _, err := m.store.Remove(entry.ID)
		return err
	}

	nodeType := types.NodeFile
	if entry.IsDirectory {
		nodeType = types.NodeDirectory
	}
	res, err := b.Create(ctx, dir, entry.DisplayName, nodeType, types.PolicyFail, "")
	if err != nil {
		return fmt.Errorf("restore create: %w", err)
	}
	if err := copyShallow(ctx, b, entry.ParkedLocation, res.Location, types.Node{IsDirectory: entry.IsDirectory}); err != nil {
		return fmt.Errorf("restore copy: %w", err)
	}
	if _, err := b.Delete(ctx, entry.ParkedLocation); err != nil {
		return fmt.Errorf("restore delete parked: %w", err)
	}

	_, _, err = m.store.Remove(entry.ID)
	return err
}

func ensureDirChain(ctx context.Context, b backend.Backend, dir string) error {
	if b.Exists(ctx, dir) {
		return nil
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		if err := ensureDirChain(ctx, b, parent); err != nil {
			return err
		}
	}
	_, err := b.Create(ctx, parent, filepath.Base(dir), types.NodeDirectory, types.PolicyFail, "")
	return err
}

// List returns every entry currently recorded in the trash index.
func (m *Manager) List() ([]types.TrashEntry, error) {
	return m.store.All()
}

// PermanentlyDelete purges a trashed entry without restoring it.
func (m *Manager) PermanentlyDelete(ctx context.Context, entry types.TrashEntry) error {
	return m.purge(ctx, entry)
}

// Empty purges every entry in the trash.
func (m *Manager) Empty(ctx context.Context) error {
	entries, err := m.store.All()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := m.purge(ctx, e); err != nil {
			slog.Warn("empty trash purge failed", "id", e.ID, "error", err)
		}
	}
	return nil
}
