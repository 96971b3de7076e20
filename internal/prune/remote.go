package prune

import (
	"context"
	"fmt"
	"sort"

	"b2backup/internal/b2"

	"github.com/mdouchement/logger"
)

// ObjectStore is what remote pruning needs from the store, with the
// session already bound.
type ObjectStore interface {
	ListFileNames(ctx context.Context, bucketID, prefix string) ([]b2.FileVersion, error)
	DeleteFileVersion(ctx context.Context, fileName, fileID string) error
}

// Remote deletes every object under prefix beyond the newest keep, by
// upload timestamp. The listing must be complete before anything is
// decided, so a listing failure aborts the pass; individual delete
// failures are logged and skipped. Timestamp ties keep the store's
// listing order.
func Remote(ctx context.Context, store ObjectStore, bucketID, prefix string, keep int, log logger.Logger) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep count must be >= 0, got %d", keep)
	}
	files, err := store.ListFileNames(ctx, bucketID, prefix)
	if err != nil {
		return 0, fmt.Errorf("prune: list remote backups: %w", err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadTimestamp < files[j].UploadTimestamp
	})
	if len(files) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, f := range files[:len(files)-keep] {
		if err := store.DeleteFileVersion(ctx, f.FileName, f.FileID); err != nil {
			log.Warnf("failed to delete remote backup %s: %v", f.FileName, err)
			continue
		}
		log.Infof("deleted old remote backup: %s", f.FileName)
		deleted++
	}
	return deleted, nil
}
