// Package list implements non-recursive and bounded-depth directory
// enumeration across backends (§4.13).
package list

import (
	"context"

	"github.com/babarot/storax/internal/backend"
	"github.com/babarot/storax/internal/core/types"
)

// Directory lists the immediate children of target.
func Directory(ctx context.Context, det backend.Detector, target string) ([]types.Node, error) {
	b := det.Resolve(target)
	return b.List(ctx, target)
}

// Traverse walks target breadth-first up to maxDepth levels (maxDepth < 0
// means unlimited), guarding against cycles with a visited-location set
// (§4.13). The returned slice is every node discovered, in BFS order.
func Traverse(ctx context.Context, det backend.Detector, target string, maxDepth int) ([]types.Node, error) {
	type queued struct {
		location string
		depth    int
	}

	var out []types.Node
	visited := map[string]bool{target: true}
	queue := []queued{{location: target, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		b := det.Resolve(cur.location)
		children, err := b.List(ctx, cur.location)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			out = append(out, child)
			if visited[child.Location] {
				continue
			}
			if !child.IsDirectory {
				continue
			}
			if maxDepth >= 0 && cur.depth+1 > maxDepth {
				continue
			}
			visited[child.Location] = true
			queue = append(queue, queued{location: child.Location, depth: cur.depth + 1})
		}
	}

	return out, nil
}
