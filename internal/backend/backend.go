// Package backend defines the uniform create/delete/rename contract (§4.3)
// that lets every engine drive either a filesystem path or an opaque
// document-tree handle, and the scheme-based detector that picks between
// them.
package backend

import (
	"context"

	"github.com/babarot/storax/internal/core/types"
)

// Backend is the capability set every storage driver must satisfy. It is
// deliberately small and flat: no virtual inheritance, no deep hierarchy
// (spec §9).
type Backend interface {
	// Kind identifies which concrete backend this is.
	Kind() types.BackendKind

	// Create makes a new node named name under parent, resolving any name
	// conflict against the backend's own existence check per policy.
	Create(ctx context.Context, parent, name string, nodeType types.NodeType, policy types.ConflictPolicy, manual string) (types.CreateResult, error)

	// Delete removes the node at location. For a directory on the path
	// backend this is recursive.
	Delete(ctx context.Context, location string) (bool, error)

	// Rename changes the node at source to newName, resolving conflicts
	// per policy. Backends must not rename in place when the resolved name
	// equals the current name.
	Rename(ctx context.Context, source, newName string, policy types.ConflictPolicy, manual string) (bool, error)

	// Exists reports whether location currently refers to a node.
	Exists(ctx context.Context, location string) bool

	// Stat returns node metadata for location.
	Stat(ctx context.Context, location string) (types.Node, error)

	// List returns the immediate children of a directory location.
	List(ctx context.Context, location string) ([]types.Node, error)
}

// ShallowCopier is an optional capability for backends that can copy a
// node to a new location without going through the adaptive copy engine.
// The trash manager uses it to park/restore objects when a rename across
// directories isn't available; it is not resumable or verified the way
// internal/engine's copy is.
type ShallowCopier interface {
	CopyShallow(ctx context.Context, src, dst string, isDirectory bool) error
}

// scheme prefixes used by the detector (§3: "The backend detector
// classifies by scheme prefix").
const HandleScheme = "handle://"

// DetectKind classifies a location string by scheme prefix: anything
// beginning with handle:// is a handle-backend URI, everything else is a
// filesystem path.
func DetectKind(location string) types.BackendKind {
	if len(location) >= len(HandleScheme) && location[:len(HandleScheme)] == HandleScheme {
		return types.BackendHandle
	}
	return types.BackendPath
}

// Detector resolves a location string to the Backend that should handle
// it. The wider orchestrator owns one Detector wired to a path backend and
// a handle backend instance.
type Detector struct {
	Path   Backend
	Handle Backend
}

// Resolve returns the backend for location based on its scheme.
func (d Detector) Resolve(location string) Backend {
	if DetectKind(location) == types.BackendHandle {
		return d.Handle
	}
	return d.Path
}
