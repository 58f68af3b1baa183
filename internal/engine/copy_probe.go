package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// measureWriteSpeed writes a probeBytes buffer to a temp file under dir,
// timing the fsync'd close, and returns bytes/sec (§4.11: "write speed is
// measured once per process by writing a 5 MiB buffer to a cache file and
// timing the fsync'd close").
func measureWriteSpeed(dir string, probeBytes int64) (float64, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, err
	}
	path := filepath.Join(dir, fmt.Sprintf("writespeed-%s.tmp", uuid.New().String()))
	defer os.Remove(path)

	buf := make([]byte, probeBytes)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	if elapsed <= 0 {
		return 0, fmt.Errorf("degenerate probe duration")
	}
	return float64(probeBytes) / elapsed.Seconds(), nil
}
