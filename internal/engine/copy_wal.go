package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/babarot/storax/internal/atomicfile"
)

// copyWALRecord is the on-disk state of one in-flight transactional copy
// job (§4.11). It is rewritten atomically every WALSyncBytes of progress
// so recovery can resume close to where a crash interrupted it.
type copyWALRecord struct {
	JobID       string `json:"job_id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Total       int64  `json:"total"`
	CopiedBytes int64  `json:"copied_bytes"`
	IsDirectory bool   `json:"is_directory"`
	CurrentFile string `json:"current_file,omitempty"` // directory copies only
}

func (e *CopyEngine) walPath(jobID string) string {
	return filepath.Join(e.WALDir, fmt.Sprintf("%s.wal", jobID))
}

func (e *CopyEngine) writeWAL(rec copyWALRecord) error {
	return atomicfile.WriteJSON(e.walPath(rec.JobID), rec)
}

func (e *CopyEngine) removeWAL(jobID string) error {
	if err := atomicfile.Remove(e.walPath(jobID)); err != nil {
		return err
	}
	return atomicfile.SyncDir(e.WALDir)
}

// listWALRecords returns every WAL record currently on disk, used by
// recovery to restart interrupted copies.
func (e *CopyEngine) listWALRecords() ([]copyWALRecord, error) {
	entries, err := os.ReadDir(e.WALDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var recs []copyWALRecord
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		var rec copyWALRecord
		if err := atomicfile.ReadJSON(filepath.Join(e.WALDir, ent.Name()), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
