// Package archive implements C7: compressed catalog/hint/icon-tarball
// writers, the DEP-11 YAML and AppStream XML catalog envelopes, and a
// small random-access tar reader used by package backends (spec §2, §6).
//
// Compression is grounded on github.com/klauspost/compress (gzip/zstd)
// and github.com/ulikunitz/xz, both present in
// quay-claircore/go.mod — claircore uses klauspost/compress for its own
// layer/report compression and ulikunitz/xz for reading .deb control
// archives upstream; this package reuses the same libraries for the
// catalog/hints/icon outputs spec §6 names.
package archive

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	kpgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/distrocat/asgen"
)

// Compression identifies one of the output codecs the catalog/hints/icon
// writers support (spec §6's "{gz,xz}" catalog and hints suffixes).
// Zstd is exposed for callers that need a third codec but isn't used by
// any fixed-suffix export path: the CID index and icon tarballs are
// always gzip per spec §6's on-disk layout.
type Compression int

const (
	Gzip Compression = iota
	XZ
	Zstd
)

// Suffix returns the filename suffix for c (e.g. "gz" for [Gzip]).
func (c Compression) Suffix() string {
	switch c {
	case Gzip:
		return "gz"
	case XZ:
		return "xz"
	case Zstd:
		return "zst"
	default:
		return ""
	}
}

// NewWriter wraps w with a compressing writer for c. The returned
// WriteCloser must be closed to flush trailing compressed data; closing
// it does not close w.
func NewWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return kpgzip.NewWriterLevel(w, gzip.BestCompression)
	case XZ:
		return xz.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w)
	default:
		return nil, &asgen.Error{Op: "archive.NewWriter", Kind: asgen.ErrInternal, Message: "unknown compression kind"}
	}
}

// WriteCompressedFile writes data to path compressed with c, creating
// any missing parent directories. This is the sink the catalog, hints,
// and icon-tarball exporters use to realize spec §6's on-disk layout;
// everything upstream only produces bytes in memory.
func WriteCompressedFile(path string, c Compression, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &asgen.Error{Op: "archive.WriteCompressedFile", Kind: asgen.ErrStorage, Message: path, Inner: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &asgen.Error{Op: "archive.WriteCompressedFile", Kind: asgen.ErrStorage, Message: path, Inner: err}
	}
	defer f.Close()

	w, err := NewWriter(f, c)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return &asgen.Error{Op: "archive.WriteCompressedFile", Kind: asgen.ErrStorage, Message: path, Inner: err}
	}
	if err := w.Close(); err != nil {
		return &asgen.Error{Op: "archive.WriteCompressedFile", Kind: asgen.ErrStorage, Message: path, Inner: err}
	}
	return nil
}

// NewReader wraps r with a decompressing reader for c.
func NewReader(r io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case Gzip:
		return kpgzip.NewReader(r)
	case XZ:
		return xz.NewReader(r)
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, &asgen.Error{Op: "archive.NewReader", Kind: asgen.ErrInternal, Message: "unknown compression kind"}
	}
}
