package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/babarot/storax/internal/conflict"
	"github.com/babarot/storax/internal/core/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// neutralMIMEType is what sniffMIME reports for empty content (§4.3: "a
// neutral MIME type for files").
const neutralMIMEType = "application/octet-stream"

// handleNode is one node of the opaque document tree: a directory or a
// file with in-memory content. Real document-tree providers (Android SAF,
// a cloud-drive API) expose the same shape through a permission-scoped
// client; this in-process implementation is the storax-side stand-in the
// handle backend drives.
type handleNode struct {
	uri         string
	name        string
	isDir       bool
	content     []byte
	modTime     time.Time
	parent      string
	children    map[string]string // name -> child URI
}

// HandleBackend drives an opaque, permission-scoped document tree: no
// seekable byte offsets, only child lookup by name, creation, deletion,
// and URI-identified open (§4.3).
type HandleBackend struct {
	mu    sync.RWMutex
	nodes map[string]*handleNode
	root  string
}

// NewHandleBackend creates a handle backend with a single root directory
// node and returns its URI.
func NewHandleBackend() (*HandleBackend, string) {
	root := HandleScheme + "root"
	b := &HandleBackend{
		nodes: map[string]*handleNode{
			root: {
				uri:      root,
				name:     "",
				isDir:    true,
				modTime:  time.Now(),
				children: make(map[string]string),
			},
		},
		root: root,
	}
	return b, root
}

func (b *HandleBackend) Kind() types.BackendKind { return types.BackendHandle }

func (b *HandleBackend) Root() string { return b.root }

func (b *HandleBackend) Exists(_ context.Context, location string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.nodes[location]
	return ok
}

func (b *HandleBackend) Stat(_ context.Context, location string) (types.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[location]
	if !ok {
		return types.Node{}, types.NewOpError("stat", location, types.ErrNotFound)
	}
	return nodeToNode(n), nil
}

func (b *HandleBackend) List(_ context.Context, location string) ([]types.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[location]
	if !ok {
		return nil, types.NewOpError("list", location, types.ErrNotFound)
	}
	if !n.isDir {
		return nil, types.NewOpError("list", location, fmt.Errorf("not a directory"))
	}
	nodes := make([]types.Node, 0, len(n.children))
	for _, childURI := range n.children {
		nodes = append(nodes, nodeToNode(b.nodes[childURI]))
	}
	return nodes, nil
}

func (b *HandleBackend) Create(_ context.Context, parent, name string, nodeType types.NodeType, policy types.ConflictPolicy, manual string) (types.CreateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parentNode, ok := b.nodes[parent]
	if !ok || !parentNode.isDir {
		return types.CreateResult{}, types.NewOpError("create", parent, types.ErrNotFound)
	}

	final, ok := conflict.Resolve(func(n string) bool {
		_, exists := parentNode.children[n]
		return exists
	}, name, policy, manual)
	if !ok {
		return types.CreateResult{}, types.NewOpError("create", parent+"/"+name, types.ErrConflictDeclined)
	}

	// Replacing an existing child: the backend-provided create call
	// deletes-then-creates, since document trees have no in-place truncate.
	if existingURI, exists := parentNode.children[final]; exists {
		delete(b.nodes, existingURI)
		delete(parentNode.children, final)
	}

	uri := fmt.Sprintf("%s%s", HandleScheme, uuid.New().String())
	b.nodes[uri] = &handleNode{
		uri:      uri,
		name:     final,
		isDir:    nodeType == types.NodeDirectory,
		modTime:  time.Now(),
		parent:   parent,
		children: map[string]string{},
	}
	parentNode.children[final] = uri

	slog.Debug("handle backend created node", "parent", parent, "name", final, "uri", uri)
	return types.CreateResult{Success: true, FinalName: final, Location: uri}, nil
}

func (b *HandleBackend) Delete(_ context.Context, location string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[location]
	if !ok {
		return false, types.NewOpError("delete", location, types.ErrNotFound)
	}

	b.deleteRecursive(n)
	if parent, ok := b.nodes[n.parent]; ok {
		delete(parent.children, n.name)
	}
	slog.Debug("handle backend deleted node", "uri", location)
	return true, nil
}

func (b *HandleBackend) deleteRecursive(n *handleNode) {
	for _, childURI := range n.children {
		if child, ok := b.nodes[childURI]; ok {
			b.deleteRecursive(child)
		}
	}
	delete(b.nodes, n.uri)
}

// Rename renames the node at source, then re-resolves the handle from the
// returned post-rename URI and verifies the name, as the backend contract
// requires (§4.3) since a document-tree rename call may mint a new URI.
func (b *HandleBackend) Rename(_ context.Context, source, newName string, policy types.ConflictPolicy, manual string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[source]
	if !ok {
		return false, types.NewOpError("rename", source, types.ErrNotFound)
	}
	parentNode, ok := b.nodes[n.parent]
	if !ok {
		return false, types.NewOpError("rename", source, types.ErrNotFound)
	}

	final, ok := conflict.Resolve(func(name string) bool {
		_, exists := parentNode.children[name]
		return exists
	}, newName, policy, manual)
	if !ok {
		return false, types.NewOpError("rename", source, types.ErrConflictDeclined)
	}

	if final == n.name {
		// Backends must not rename in-place when the chosen name equals the
		// current name (§4.3).
		return true, nil
	}

	if policy == types.PolicyReplace {
		if existingURI, exists := parentNode.children[final]; exists && existingURI != source {
			b.deleteRecursive(b.nodes[existingURI])
			delete(parentNode.children, final)
		}
	}

	delete(parentNode.children, n.name)
	n.name = final
	parentNode.children[final] = n.uri

	// Re-resolve and verify, per the backend contract.
	reResolved, ok := b.nodes[n.uri]
	if !ok || reResolved.name != final {
		return false, types.NewOpError("rename", source, fmt.Errorf("post-rename verification failed"))
	}

	slog.Debug("handle backend renamed node", "uri", n.uri, "name", final)
	return true, nil
}

// OpenReader returns the content of a handle-backend file. Document trees
// expose only URI-identified open, not seekable offsets (§4.3); callers
// needing resumable transfer must not rely on Seek against this reader.
func (b *HandleBackend) OpenReader(_ context.Context, location string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[location]
	if !ok || n.isDir {
		return nil, types.NewOpError("open", location, types.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(n.content)), nil
}

// CreateWriter creates a file under parent and returns a writer that
// commits its content to the node on Close, along with the node's final
// name and URI. There is no partial/resumable write against a document
// tree (§4.3, §9 open question #2): the node is created empty when
// CreateWriter returns and its content is only installed at Close, so an
// interrupted write leaves an empty node, never a partial one.
func (b *HandleBackend) CreateWriter(ctx context.Context, parent, name string, policy types.ConflictPolicy, manual string) (*handleWriter, error) {
	res, err := b.Create(ctx, parent, name, types.NodeFile, policy, manual)
	if err != nil {
		return nil, err
	}
	return &handleWriter{backend: b, uri: res.Location}, nil
}

type handleWriter struct {
	backend *HandleBackend
	uri     string
	buf     bytes.Buffer
}

func (w *handleWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *handleWriter) Close() error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	n, ok := w.backend.nodes[w.uri]
	if !ok {
		return types.NewOpError("close", w.uri, types.ErrNotFound)
	}
	n.content = w.buf.Bytes()
	n.modTime = time.Now()
	slog.Debug("handle backend committed file content", "uri", w.uri, "mime", sniffMIME(n.content), "bytes", len(n.content))
	return nil
}

// Location returns the final handle URI this writer commits to.
func (w *handleWriter) Location() string { return w.uri }

// CopyShallow copies node content in-memory from src to dst, satisfying
// backend.ShallowCopier. Used only for trash park/restore fallbacks; the
// adaptive copy engine never streams through this path (§9: handle
// backend has no random I/O, only whole-content read/write).
func (b *HandleBackend) CopyShallow(_ context.Context, src, dst string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	srcNode, ok := b.nodes[src]
	if !ok {
		return types.NewOpError("copy", src, types.ErrNotFound)
	}
	dstNode, ok := b.nodes[dst]
	if !ok {
		return types.NewOpError("copy", dst, types.ErrNotFound)
	}
	dstNode.content = append([]byte(nil), srcNode.content...)
	dstNode.modTime = time.Now()
	return nil
}

func nodeToNode(n *handleNode) types.Node {
	return types.Node{
		Name:         n.name,
		Location:     n.uri,
		IsDirectory:  n.isDir,
		Size:         int64(len(n.content)),
		LastModified: n.modTime,
		Kind:         types.BackendHandle,
	}
}

// sniffMIME detects a neutral-or-specific MIME type for content; a
// handleWriter logs it when it commits content on Close.
func sniffMIME(content []byte) string {
	if len(content) == 0 {
		return neutralMIMEType
	}
	return mimetype.Detect(content).String()
}
