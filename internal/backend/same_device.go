//go:build !windows

package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/moby/sys/mountinfo"
)

// mountTable caches the process's mount points: loaded on first use and
// not refreshed afterwards, since mounts rarely change during a single
// storax invocation.
var mountTable = sync.OnceValues(func() ([]*mountinfo.Info, error) {
	return mountinfo.GetMounts(nil)
})

// mountPointFor returns the longest matching mount point for path, falling
// back to "/" the way the teacher's xdg mountpoint resolver does.
func mountPointFor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path for %s: %w", path, err)
	}

	mounts, err := mountTable()
	if err != nil {
		return "/", nil
	}

	var longest string
	for _, m := range mounts {
		if len(m.Mountpoint) > len(longest) &&
			(abs == m.Mountpoint || (len(abs) > len(m.Mountpoint) && abs[:len(m.Mountpoint)] == m.Mountpoint)) {
			longest = m.Mountpoint
		}
	}
	if longest == "" {
		return "/", nil
	}
	return longest, nil
}

// sameDevice reports whether src and dst's parent directory resolve to the
// same mount point, grounding the move engine's same-backend rename
// shortcut (§4.12) on the mount table instead of a raw syscall.Stat_t
// comparison.
func sameDevice(src, dst string) (bool, error) {
	dstDir := filepath.Dir(dst)
	if _, err := os.Stat(dstDir); err != nil {
		return false, fmt.Errorf("stat destination parent %s: %w", dstDir, err)
	}

	srcMount, err := mountPointFor(src)
	if err != nil {
		return false, err
	}
	dstMount, err := mountPointFor(dstDir)
	if err != nil {
		return false, err
	}
	return srcMount == dstMount, nil
}
