package archive

import (
	"fmt"
	"time"
)

// timestampLayout sorts lexicographically in chronological order, which
// the local pruner relies on.
const timestampLayout = "20060102-150405"

// Name builds the archive filename for one run:
// {job}-backup-{YYYYMMDD-HHMMSS}{ext}. The extension always reflects the
// format the archive was actually written with.
func Name(job string, f Format, at time.Time) string {
	return fmt.Sprintf("%s-backup-%s%s", job, at.Format(timestampLayout), f.Extension())
}

// Pattern is the glob matching every archive of a job, whatever the
// compression extension. The "-backup-" marker keeps jobs whose names
// share a prefix from matching each other.
func Pattern(job string) string {
	return job + "-backup-*"
}

// RemoteMarker is the name prefix of a job's objects under the remote
// path, used to scope listing so jobs sharing a bucket never prune each
// other.
func RemoteMarker(job string) string {
	return job + "-backup-"
}
