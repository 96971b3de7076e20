package archive

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

type Format string

const (
	FormatGzip Format = "gz"
	FormatZstd Format = "zst"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatGzip:
		return FormatGzip, nil
	case FormatZstd:
		return FormatZstd, nil
	default:
		return "", fmt.Errorf("unknown archive format %q", s)
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatZstd:
		return ".tar.zst"
	default:
		return ".tar.gz"
	}
}

func newCompressWriter(w io.Writer, f Format) (io.WriteCloser, error) {
	switch f {
	case FormatGzip:
		return gzip.NewWriter(w), nil
	case FormatZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown archive format %q", f)
	}
}
