package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"b2backup/internal/b2"
	"b2backup/internal/config"
	"b2backup/internal/transport"

	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
)

func testLogger() logger.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logger.WrapLogrus(l)
}

// fakeStore implements ObjectStore in memory.
type fakeStore struct {
	authErr error
	listErr error
	buckets map[string]string
	allowed b2.BucketScope

	files   []b2.FileVersion
	deleted []string
	nextTS  int64
}

func (f *fakeStore) Authorize(_ context.Context, accountID, accountKey string) (*b2.Session, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &b2.Session{AccountID: accountID, APIURL: "fake://", Token: "tok", Allowed: f.allowed}, nil
}

func (f *fakeStore) ResolveBucket(_ context.Context, s *b2.Session, bucket string) (string, error) {
	if s.Allowed.BucketID != "" && s.Allowed.BucketName == bucket {
		return s.Allowed.BucketID, nil
	}
	if id, ok := f.buckets[bucket]; ok {
		return id, nil
	}
	return "", &b2.NotFoundError{Bucket: bucket}
}

func (f *fakeStore) ListFileNames(_ context.Context, _ *b2.Session, bucketID, prefix string) ([]b2.FileVersion, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []b2.FileVersion
	for _, fv := range f.files {
		if strings.HasPrefix(fv.FileName, prefix) {
			out = append(out, fv)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFileVersion(_ context.Context, _ *b2.Session, fileName, fileID string) error {
	for i, fv := range f.files {
		if fv.FileID == fileID {
			f.files = append(f.files[:i], f.files[i+1:]...)
			f.deleted = append(f.deleted, fileName)
			return nil
		}
	}
	return &b2.DeleteError{FileName: fileName, FileID: fileID, Status: 400, Message: "no such version"}
}

// fakeCopier records invocations and, on success, makes the uploaded
// archive visible in the fake store the way a real upload would.
type fakeCopier struct {
	store *fakeStore
	err   error

	locals  []string
	remotes []string
}

func (c *fakeCopier) Copy(_ context.Context, localPath, remoteDest string) error {
	c.locals = append(c.locals, localPath)
	c.remotes = append(c.remotes, remoteDest)
	if c.err != nil {
		return c.err
	}
	c.store.nextTS++
	c.store.files = append(c.store.files, b2.FileVersion{
		FileName:        "backups/" + filepath.Base(localPath),
		FileID:          fmt.Sprintf("up_%d", c.store.nextTS),
		UploadTimestamp: c.store.nextTS,
	})
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	src := t.TempDir()
	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return config.Config{
		JobName:         "db1",
		SourceDir:       src,
		BackupDir:       t.TempDir(),
		Bucket:          "mybucket",
		RemotePath:      "backups",
		AccountID:       "acct",
		AccountKey:      "key",
		LocalRetention:  2,
		RemoteRetention: 2,
		Format:          "gz",
	}
}

func newTestRunner(t *testing.T, cfg config.Config) (*Runner, *fakeStore, *fakeCopier) {
	t.Helper()
	store := &fakeStore{buckets: map[string]string{"mybucket": "bkt_1"}}
	copier := &fakeCopier{store: store}
	return &Runner{
		Config: cfg,
		Log:    testLogger(),
		Store:  store,
		Copier: copier,
	}, store, copier
}

func localArchives(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunSuccess(t *testing.T) {
	cfg := testConfig(t)
	r, store, copier := newTestRunner(t, cfg)
	r.Now = func() time.Time { return time.Date(2025, 3, 1, 2, 30, 0, 0, time.UTC) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.State() != StateComplete {
		t.Errorf("state = %s, want complete", r.State())
	}
	if len(copier.locals) != 1 {
		t.Fatalf("copier called %d times, want 1", len(copier.locals))
	}
	if copier.remotes[0] != "b2:mybucket/backups" {
		t.Errorf("remote dest = %q, want b2:mybucket/backups", copier.remotes[0])
	}
	wantName := "db1-backup-20250301-023000.tar.gz"
	if filepath.Base(copier.locals[0]) != wantName {
		t.Errorf("uploaded %q, want %q", filepath.Base(copier.locals[0]), wantName)
	}
	got := localArchives(t, cfg.BackupDir)
	if len(got) != 1 || got[0] != wantName {
		t.Errorf("local archives = %v, want [%s]", got, wantName)
	}
	if len(store.files) != 1 {
		t.Errorf("store has %d objects, want 1", len(store.files))
	}
	if len(store.deleted) != 0 {
		t.Errorf("unexpected remote deletions: %v", store.deleted)
	}
}

func TestRunRepeatedlyAppliesRetention(t *testing.T) {
	cfg := testConfig(t)
	r, store, _ := newTestRunner(t, cfg)

	days := []time.Time{
		time.Date(2025, 3, 1, 2, 30, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 2, 30, 0, 0, time.UTC),
		time.Date(2025, 3, 3, 2, 30, 0, 0, time.UTC),
	}
	for _, day := range days {
		day := day
		r.Now = func() time.Time { return day }
		if err := r.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{
		"db1-backup-20250302-023000.tar.gz",
		"db1-backup-20250303-023000.tar.gz",
	}
	got := localArchives(t, cfg.BackupDir)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("local archives = %v, want %v", got, want)
	}

	if len(store.files) != 2 {
		t.Fatalf("store has %d objects, want 2: %v", len(store.files), store.files)
	}
	var remote []string
	for _, fv := range store.files {
		remote = append(remote, fv.FileName)
	}
	sort.Strings(remote)
	for i, w := range want {
		if remote[i] != "backups/"+w {
			t.Errorf("remote[%d] = %q, want %q", i, remote[i], "backups/"+w)
		}
	}
}

func TestAuthFailurePrecedesAllWork(t *testing.T) {
	cfg := testConfig(t)
	r, store, copier := newTestRunner(t, cfg)
	store.authErr = &b2.AuthError{Status: 401, Message: "bad credentials"}

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *b2.AuthError
	if !errors.As(err, &ae) {
		t.Errorf("err = %v, want wrapped *b2.AuthError", err)
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want failed", r.State())
	}
	if got := localArchives(t, cfg.BackupDir); len(got) != 0 {
		t.Errorf("archives created despite auth failure: %v", got)
	}
	if len(copier.locals) != 0 {
		t.Error("upload attempted despite auth failure")
	}
	if len(store.deleted) != 0 {
		t.Error("deletions performed despite auth failure")
	}
}

func TestUnknownBucketAbortsBeforeArchiving(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bucket = "missing"
	r, _, copier := newTestRunner(t, cfg)

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var nf *b2.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("err = %v, want wrapped *b2.NotFoundError", err)
	}
	if got := localArchives(t, cfg.BackupDir); len(got) != 0 {
		t.Errorf("archives created despite unknown bucket: %v", got)
	}
	if len(copier.locals) != 0 {
		t.Error("upload attempted despite unknown bucket")
	}
}

func TestUploadFailureRetainsArchive(t *testing.T) {
	cfg := testConfig(t)
	r, store, copier := newTestRunner(t, cfg)
	copier.err = &transport.CopyError{Command: "rclone copy", ExitCode: 3, Output: "quota exceeded"}

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *transport.CopyError
	if !errors.As(err, &ce) {
		t.Errorf("err = %v, want wrapped *transport.CopyError", err)
	}
	// The archive stays for a manual retry, and no pruning ran.
	if got := localArchives(t, cfg.BackupDir); len(got) != 1 {
		t.Errorf("local archives = %v, want the retained archive", got)
	}
	if len(store.deleted) != 0 {
		t.Errorf("remote deletions after failed upload: %v", store.deleted)
	}
}

func TestRemoteListFailureFailsRun(t *testing.T) {
	cfg := testConfig(t)
	r, store, _ := newTestRunner(t, cfg)
	store.listErr = &b2.ListError{Status: 503, Message: "service unavailable"}

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want failed", r.State())
	}
	if len(store.deleted) != 0 {
		t.Error("deletions performed without a complete listing")
	}
}

func TestPruneOnly(t *testing.T) {
	cfg := testConfig(t)
	r, store, copier := newTestRunner(t, cfg)

	for i := 1; i <= 4; i++ {
		name := fmt.Sprintf("db1-backup-2025010%d-000000.tar.gz", i)
		if err := os.WriteFile(filepath.Join(cfg.BackupDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		store.files = append(store.files, b2.FileVersion{
			FileName:        "backups/" + name,
			FileID:          fmt.Sprintf("id_%d", i),
			UploadTimestamp: int64(i),
		})
	}

	if err := r.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(copier.locals) != 0 {
		t.Error("prune must not upload")
	}
	if got := localArchives(t, cfg.BackupDir); len(got) != 2 {
		t.Errorf("local archives = %v, want newest 2", got)
	}
	if len(store.files) != 2 {
		t.Errorf("store has %d objects, want 2", len(store.files))
	}
}

func TestStateStrings(t *testing.T) {
	states := []State{StateIdle, StateValidating, StateArchiving, StateUploading, StatePruningRemote, StatePruningLocal, StateComplete, StateFailed}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		if str == "" || seen[str] {
			t.Errorf("state %d has empty or duplicate name %q", int(s), str)
		}
		seen[str] = true
	}
}
