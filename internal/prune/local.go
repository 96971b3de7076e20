// Package prune enforces keep-count retention on both tiers. Pruning
// only ever looks at settled state: files already on disk, objects
// already listed by the store.
package prune

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"b2backup/internal/archive"

	"github.com/mdouchement/logger"
)

// Local deletes every archive of the job in dir beyond the newest keep.
// Names embed a fixed-width timestamp, so sorting by name is sorting by
// age. Individual delete failures are logged and skipped so disk
// pressure relief stays as complete as possible.
func Local(dir, job string, keep int, log logger.Logger) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep count must be >= 0, got %d", keep)
	}
	matches, err := filepath.Glob(filepath.Join(dir, archive.Pattern(job)))
	if err != nil {
		return 0, fmt.Errorf("prune: enumerate local archives: %w", err)
	}
	sort.Strings(matches)
	if len(matches) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil {
			log.Warnf("failed to delete local backup %s: %v", path, err)
			continue
		}
		log.Infof("deleted old local backup: %s", path)
		deleted++
	}
	return deleted, nil
}
