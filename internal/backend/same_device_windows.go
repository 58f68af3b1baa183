//go:build windows

package backend

import "path/filepath"

// sameDevice compares drive letters/volume names on Windows, where the
// mount-table approach used on Unix does not apply.
func sameDevice(src, dst string) (bool, error) {
	return filepath.VolumeName(src) == filepath.VolumeName(filepath.Dir(dst)), nil
}
