package backend

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/babarot/storax/internal/conflict"
	"github.com/babarot/storax/internal/core/types"
	"github.com/gabriel-vasile/mimetype"
	cp "github.com/otiai10/copy"
)

// MediaIndexNotifier is the external collaborator notified after a
// mutation of a whitelisted-extension file (§4.3, §6). It never
// participates in transaction correctness.
type MediaIndexNotifier interface {
	NotifyChanged(location string)
}

// NoopMediaIndexNotifier discards notifications; the default when no
// platform media scanner is wired in.
type NoopMediaIndexNotifier struct{}

func (NoopMediaIndexNotifier) NotifyChanged(string) {}

// mediaWhitelist is the fixed extension whitelist from §4.3.
var mediaWhitelist = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true,
}

// PathBackend drives create/delete/rename on the local filesystem.
type PathBackend struct {
	Notifier MediaIndexNotifier
}

// NewPathBackend constructs a PathBackend; notifier may be nil, in which
// case notifications are discarded.
func NewPathBackend(notifier MediaIndexNotifier) *PathBackend {
	if notifier == nil {
		notifier = NoopMediaIndexNotifier{}
	}
	return &PathBackend{Notifier: notifier}
}

func (b *PathBackend) Kind() types.BackendKind { return types.BackendPath }

func (b *PathBackend) Exists(_ context.Context, location string) bool {
	_, err := os.Lstat(location)
	return err == nil
}

func (b *PathBackend) Stat(_ context.Context, location string) (types.Node, error) {
	info, err := os.Lstat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Node{}, types.NewOpError("stat", location, types.ErrNotFound)
		}
		return types.Node{}, types.NewOpError("stat", location, types.NewIOError(err))
	}
	size := info.Size()
	if info.IsDir() {
		// Lister computes real directory size only when copy needs a total (§3).
		size = 0
	}
	return types.Node{
		Name:         info.Name(),
		Location:     location,
		IsDirectory:  info.IsDir(),
		Size:         size,
		LastModified: info.ModTime(),
		Kind:         types.BackendPath,
	}, nil
}

func (b *PathBackend) List(_ context.Context, location string) ([]types.Node, error) {
	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, types.NewOpError("list", location, types.NewIOError(err))
	}
	nodes := make([]types.Node, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		size := info.Size()
		if e.IsDir() {
			size = 0
		}
		nodes = append(nodes, types.Node{
			Name:         e.Name(),
			Location:     filepath.Join(location, e.Name()),
			IsDirectory:  e.IsDir(),
			Size:         size,
			LastModified: info.ModTime(),
			Kind:         types.BackendPath,
		})
	}
	return nodes, nil
}

func (b *PathBackend) Create(_ context.Context, parent, name string, nodeType types.NodeType, policy types.ConflictPolicy, manual string) (types.CreateResult, error) {
	final, ok := conflict.Resolve(func(n string) bool {
		_, err := os.Lstat(filepath.Join(parent, n))
		return err == nil
	}, name, policy, manual)
	if !ok {
		return types.CreateResult{}, types.NewOpError("create", filepath.Join(parent, name), types.ErrConflictDeclined)
	}

	target := filepath.Join(parent, final)

	switch nodeType {
	case types.NodeDirectory:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return types.CreateResult{}, types.NewOpError("create", target, types.NewIOError(err))
		}
	default:
		flags := os.O_WRONLY | os.O_CREATE
		if policy == types.PolicyReplace {
			flags |= os.O_TRUNC
		} else {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(target, flags, 0o644)
		if err != nil {
			return types.CreateResult{}, types.NewOpError("create", target, types.NewIOError(err))
		}
		f.Close()
	}

	b.notifyIfWhitelisted(target)
	slog.Debug("path backend created node", "target", target, "type", nodeType)
	return types.CreateResult{Success: true, FinalName: final, Location: target}, nil
}

func (b *PathBackend) Delete(_ context.Context, location string) (bool, error) {
	info, err := os.Lstat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return false, types.NewOpError("delete", location, types.ErrNotFound)
		}
		return false, types.NewOpError("delete", location, types.NewIOError(err))
	}

	if info.IsDir() {
		err = os.RemoveAll(location)
	} else {
		err = os.Remove(location)
	}
	if err != nil {
		return false, types.NewOpError("delete", location, types.NewIOError(err))
	}

	b.notifyIfWhitelisted(location)
	slog.Debug("path backend deleted node", "location", location)
	return true, nil
}

func (b *PathBackend) Rename(_ context.Context, source, newName string, policy types.ConflictPolicy, manual string) (bool, error) {
	dir := filepath.Dir(source)

	if newName == filepath.Base(source) {
		// Renaming to the current name is a no-op (§4.3).
		return true, nil
	}

	final, ok := conflict.Resolve(func(n string) bool {
		_, err := os.Lstat(filepath.Join(dir, n))
		return err == nil
	}, newName, policy, manual)
	if !ok {
		return false, types.NewOpError("rename", source, types.ErrConflictDeclined)
	}

	target := filepath.Join(dir, final)
	if target == source {
		// Backends must not rename in-place when the chosen name equals the
		// current name (§4.3).
		return true, nil
	}

	if policy == types.PolicyReplace {
		if err := os.RemoveAll(target); err != nil && !os.IsNotExist(err) {
			return false, types.NewOpError("rename", source, types.NewIOError(err))
		}
	}

	if err := os.Rename(source, target); err != nil {
		return false, types.NewOpError("rename", source, types.NewIOError(err))
	}

	b.notifyIfWhitelisted(target)
	slog.Debug("path backend renamed node", "source", source, "target", target)
	return true, nil
}

func (b *PathBackend) notifyIfWhitelisted(location string) {
	ext := strings.ToLower(filepath.Ext(location))
	if !mediaWhitelist[ext] {
		return
	}
	// Best-effort sniff to avoid notifying on a whitelisted extension whose
	// content doesn't actually match (e.g. a renamed text file); never
	// blocks or fails the mutation (§5: "never block completion").
	if mt, err := mimetype.DetectFile(location); err == nil {
		if !strings.HasPrefix(mt.String(), "image/") && !strings.HasPrefix(mt.String(), "video/") && !strings.HasPrefix(mt.String(), "audio/") {
			return
		}
	}
	b.Notifier.NotifyChanged(location)
}

// SameDevice reports whether src and the parent of dst live on the same
// filesystem device, consulted by the move engine to decide between an
// atomic rename and a cross-device copy+delete (§4.12 via moby/sys/mountinfo
// backed detection in same_device.go).
func SameDevice(src, dst string) (bool, error) {
	return sameDevice(src, dst)
}

// QuickCopyDirectory recurses a directory copy using otiai10/copy, used by
// the copy engine's non-adaptive quick-copy path (§4.11).
func QuickCopyDirectory(src, dst string) error {
	return cp.Copy(src, dst, cp.Options{
		PreserveTimes: true,
		Sync:          true,
		OnSymlink:     func(string) cp.SymlinkAction { return cp.Deep },
	})
}

// CopyShallow copies src to dst using otiai10/copy for both files and
// directories, satisfying backend.ShallowCopier. It is a one-shot copy
// with no resumability or integrity verification, used only for trash
// park/restore fallbacks (§4.4).
func (b *PathBackend) CopyShallow(_ context.Context, src, dst string, _ bool) error {
	return cp.Copy(src, dst, cp.Options{
		PreserveTimes: true,
		Sync:          true,
		OnSymlink:     func(string) cp.SymlinkAction { return cp.Deep },
	})
}
