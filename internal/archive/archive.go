package archive

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mdouchement/logger"
	"github.com/zeebo/blake3"
)

// Result describes a completed archive on local disk.
type Result struct {
	Path     string
	Entries  int
	Size     int64
	Checksum string
}

// Create walks sourceDir and writes every regular file into a compressed
// tar archive at destPath, with entry names relative to sourceDir.
// Directories are traversed but not archived as entries; symlinks and
// other non-regular files are skipped.
//
// The source tree may be mutated by another process while the walk runs,
// so per-file failures (vanished, unreadable) are logged and skipped.
// Failure to open or write the archive itself is fatal.
func Create(ctx context.Context, sourceDir, destPath string, format Format, log logger.Logger) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("open archive for write: %w", err)
	}

	hasher := blake3.New()
	cw, err := newCompressWriter(io.MultiWriter(out, hasher), format)
	if err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return nil, err
	}
	tw := tar.NewWriter(cw)

	entries := 0
	walkErr := filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			// A broken source root means there is nothing meaningful
			// to archive; anything deeper is a skippable casualty of
			// the tree mutating under us.
			if p == sourceDir {
				return err
			}
			log.Warnf("skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			log.Warnf("skipping %s: %v", p, err)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			log.Warnf("skipping %s: %v", p, err)
			return nil
		}
		if err := addFile(tw, p, filepath.ToSlash(rel), info, log); err != nil {
			return err
		}
		entries++
		return nil
	})
	if walkErr != nil {
		tw.Close()
		cw.Close()
		out.Close()
		_ = os.Remove(destPath)
		return nil, fmt.Errorf("archive %s: %w", sourceDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		cw.Close()
		out.Close()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	if err := cw.Close(); err != nil {
		out.Close()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	st, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return &Result{
		Path:     destPath,
		Entries:  entries,
		Size:     st.Size(),
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// addFile writes one regular file into the archive. Open failures are
// skipped; once the header is written the entry must be completed, so a
// short read is zero-padded to keep the archive well-formed.
func addFile(tw *tar.Writer, path, name string, info fs.FileInfo, log logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		log.Warnf("skipping %s: %v", path, err)
		return nil
	}
	defer f.Close()

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		log.Warnf("skipping %s: %v", path, err)
		return nil
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	n, err := io.Copy(tw, io.LimitReader(f, hdr.Size))
	if err != nil {
		return err
	}
	if n < hdr.Size {
		log.Warnf("%s truncated while archiving (%d of %d bytes), padding entry", path, n, hdr.Size)
		if _, err := io.CopyN(tw, zeroReader{}, hdr.Size-n); err != nil {
			return err
		}
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
