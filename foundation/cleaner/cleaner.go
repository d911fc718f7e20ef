// Package cleaner removes generated artifacts (synthesized wavs, avatar
// renders, ASR recordings) once they outlive their retention window.
package cleaner

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// PurgeOlderThan deletes every entry in directory whose modification age
// strictly exceeds maxAge. An entry exactly at the boundary is kept.
// Subdirectories are removed recursively. A failed deletion is logged and
// the purge moves on; the number removed is returned.
func PurgeOlderThan(directory string, maxAge time.Duration, logger *zap.SugaredLogger) int {
	entries, err := os.ReadDir(directory)
	if err != nil {
		logger.Errorw("cleaner: PurgeOlderThan", "directory", directory, "ERROR", err)
		return 0
	}

	now := time.Now()
	removed := 0

	for _, entry := range entries {
		path := filepath.Join(directory, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Errorw("cleaner: PurgeOlderThan", "path", path, "ERROR", err)
			continue
		}

		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		if entry.IsDir() {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil {
			logger.Errorw("cleaner: PurgeOlderThan", "path", path, "ERROR", err)
			continue
		}

		removed++
	}

	return removed
}
