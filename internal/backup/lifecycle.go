// Package backup sequences one run: validate, archive, upload, prune
// remote, prune local. Transitions are strictly forward, any failure is
// terminal, and re-invocation by the external scheduler is the only
// retry mechanism.
package backup

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"b2backup/internal/archive"
	"b2backup/internal/b2"
	"b2backup/internal/config"
	"b2backup/internal/prune"
	"b2backup/internal/transport"

	"github.com/mdouchement/logger"
)

type State int

const (
	StateIdle State = iota
	StateValidating
	StateArchiving
	StateUploading
	StatePruningRemote
	StatePruningLocal
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateArchiving:
		return "archiving"
	case StateUploading:
		return "uploading"
	case StatePruningRemote:
		return "pruning-remote"
	case StatePruningLocal:
		return "pruning-local"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ObjectStore is the store surface the lifecycle needs. *b2.Client
// satisfies it; tests use an in-memory fake.
type ObjectStore interface {
	Authorize(ctx context.Context, accountID, accountKey string) (*b2.Session, error)
	ResolveBucket(ctx context.Context, s *b2.Session, bucket string) (string, error)
	ListFileNames(ctx context.Context, s *b2.Session, bucketID, prefix string) ([]b2.FileVersion, error)
	DeleteFileVersion(ctx context.Context, s *b2.Session, fileName, fileID string) error
}

type Runner struct {
	Config config.Config
	Log    logger.Logger
	Store  ObjectStore
	Copier transport.Copier

	// Now is the archive timestamp source, overridable in tests.
	Now func() time.Time

	state State
}

func (r *Runner) State() State {
	return r.state
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) enter(s State) {
	r.state = s
	r.Log.Infof("state: %s", s)
}

func (r *Runner) fail(err error) error {
	r.state = StateFailed
	r.Log.Errorf("backup run failed: %v", err)
	return err
}

// Run executes the full lifecycle once. Validation settles before any
// destructive step; remote pruning settles before local pruning so an
// interruption can only leave a stale local archive behind, never a
// missing remote one.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config

	r.enter(StateValidating)
	session, bucketID, err := r.validate(ctx)
	if err != nil {
		return r.fail(err)
	}

	r.enter(StateArchiving)
	format, err := archive.ParseFormat(cfg.Format)
	if err != nil {
		return r.fail(err)
	}
	name := archive.Name(cfg.JobName, format, r.now())
	dest := filepath.Join(cfg.BackupDir, name)
	res, err := archive.Create(ctx, cfg.SourceDir, dest, format, r.Log)
	if err != nil {
		return r.fail(fmt.Errorf("create archive: %w", err))
	}
	r.Log.Infof("created archive %s (%d entries, %d bytes, blake3 %s)", res.Path, res.Entries, res.Size, res.Checksum)

	r.enter(StateUploading)
	if err := r.Copier.Copy(ctx, res.Path, r.remoteDest()); err != nil {
		// The archive stays on disk for a manual retry.
		return r.fail(fmt.Errorf("upload archive (local copy retained at %s): %w", res.Path, err))
	}

	if err := r.pruneBoth(ctx, session, bucketID); err != nil {
		return r.fail(err)
	}

	r.enter(StateComplete)
	r.Log.Infof("backup %s complete", name)
	return nil
}

// Prune runs only the retention passes, remote first, after validating
// access. Used by the prune subcommand.
func (r *Runner) Prune(ctx context.Context) error {
	r.enter(StateValidating)
	session, bucketID, err := r.validate(ctx)
	if err != nil {
		return r.fail(err)
	}
	if err := r.pruneBoth(ctx, session, bucketID); err != nil {
		return r.fail(err)
	}
	r.enter(StateComplete)
	return nil
}

// Validate authorizes and resolves the bucket without touching disk or
// store contents. Used by the validate subcommand.
func (r *Runner) Validate(ctx context.Context) error {
	r.enter(StateValidating)
	if _, _, err := r.validate(ctx); err != nil {
		return r.fail(err)
	}
	r.state = StateComplete
	return nil
}

func (r *Runner) validate(ctx context.Context) (*b2.Session, string, error) {
	cfg := r.Config
	session, err := r.Store.Authorize(ctx, cfg.AccountID, cfg.AccountKey)
	if err != nil {
		return nil, "", fmt.Errorf("authorize: %w", err)
	}
	bucketID, err := r.Store.ResolveBucket(ctx, session, cfg.Bucket)
	if err != nil {
		return nil, "", fmt.Errorf("resolve bucket %q: %w", cfg.Bucket, err)
	}
	return session, bucketID, nil
}

func (r *Runner) pruneBoth(ctx context.Context, session *b2.Session, bucketID string) error {
	cfg := r.Config

	r.enter(StatePruningRemote)
	bound := boundStore{store: r.Store, session: session}
	n, err := prune.Remote(ctx, bound, bucketID, r.remotePrefix(), cfg.RemoteRetention, r.Log)
	if err != nil {
		return err
	}
	r.Log.Infof("remote prune: deleted %d, keeping newest %d", n, cfg.RemoteRetention)

	r.enter(StatePruningLocal)
	n, err = prune.Local(cfg.BackupDir, cfg.JobName, cfg.LocalRetention, r.Log)
	if err != nil {
		return err
	}
	r.Log.Infof("local prune: deleted %d, keeping newest %d", n, cfg.LocalRetention)
	return nil
}

// remoteDest is the destination string handed to the copy tool.
func (r *Runner) remoteDest() string {
	return strings.TrimRight(fmt.Sprintf("b2:%s/%s", r.Config.Bucket, strings.Trim(r.Config.RemotePath, "/")), "/")
}

// remotePrefix scopes listing to this job's objects under the remote
// path, so jobs sharing a bucket never prune each other.
func (r *Runner) remotePrefix() string {
	return path.Join(strings.Trim(r.Config.RemotePath, "/"), archive.RemoteMarker(r.Config.JobName))
}

// boundStore adapts the session-taking store to the pruner's interface.
type boundStore struct {
	store   ObjectStore
	session *b2.Session
}

func (b boundStore) ListFileNames(ctx context.Context, bucketID, prefix string) ([]b2.FileVersion, error) {
	return b.store.ListFileNames(ctx, b.session, bucketID, prefix)
}

func (b boundStore) DeleteFileVersion(ctx context.Context, fileName, fileID string) error {
	return b.store.DeleteFileVersion(ctx, b.session, fileName, fileID)
}
