package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/pkg/path"
)

// TarEntries walks a tar archive once and returns the bytes for every
// header whose name is in paths, resolving hardlink/symlink targets to
// their linked file's contents. This is the "random-access archive read
// abstraction used by backends" spec §2 calls for: a package backend
// reading a .deb/.rpm data tarball hands it here to pull out the handful
// of paths the composer asked for.
//
// Both a leading-slash and non-leading-slash form of each requested path
// are recognized, since archive members are conventionally stored without
// a leading slash while package content listings conventionally carry
// one.
func TarEntries(r io.Reader, paths []string) (map[string][]byte, error) {
	want := make(map[string]struct{}, len(paths)*2)
	for _, p := range paths {
		want[strings.TrimPrefix(p, "/")] = struct{}{}
	}

	type pending struct {
		linkname string
		isLink   bool
	}
	found := make(map[string][]byte, len(paths))
	links := make(map[string]pending)

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &asgen.Error{Op: "archive.TarEntries", Kind: asgen.ErrBackend, Inner: err}
		}
		name := strings.TrimPrefix(hdr.Name, "/")
		_, wanted := want[name]
		switch hdr.Typeflag {
		case tar.TypeLink, tar.TypeSymlink:
			if !wanted {
				continue
			}
			target := hdr.Linkname
			if !filepath.IsAbs(target) {
				target = filepath.Clean("/" + filepath.Join(filepath.Dir(name), target))
				target = strings.TrimPrefix(target, "/")
			} else {
				target = strings.TrimPrefix(target, "/")
			}
			links[name] = pending{linkname: target, isLink: true}
		default:
			// Every member's bytes are kept, not only the requested ones:
			// a requested link may point at a member nobody asked for.
			b := make([]byte, hdr.Size)
			if _, err := io.ReadFull(tr, b); err != nil && err != io.ErrUnexpectedEOF {
				return nil, &asgen.Error{Op: "archive.TarEntries", Kind: asgen.ErrBackend, Message: name, Inner: err}
			}
			found[name] = b
		}
	}

	for name, p := range links {
		if b, ok := found[p.linkname]; ok {
			found[name] = b
		}
	}

	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		trimmed := strings.TrimPrefix(p, "/")
		if b, ok := found[trimmed]; ok {
			out[p] = b
		}
	}
	return out, nil
}

// TarPaths returns every regular-file path stored in the tar archive r,
// used to populate a package's Contents() listing (spec §3). Names are
// canonicalized so a data tarball carrying "./", "../", or doubled
// separators can't smuggle a path-traversal entry into a content
// listing later trusted for icon/metadata lookups.
func TarPaths(r io.Reader) ([]string, error) {
	var out []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &asgen.Error{Op: "archive.TarPaths", Kind: asgen.ErrBackend, Inner: err}
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		clean := path.CanonicalizeFileName(strings.TrimPrefix(hdr.Name, "/"))
		out = append(out, "/"+clean)
	}
	return out, nil
}

// BuildTar writes files (path -> contents) into a new tar archive in the
// order paths lists them; callers that need deterministic output sort
// paths first, as IconTarballBuilder.Build does.
func BuildTar(paths []string, get func(string) ([]byte, error)) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, p := range paths {
		b, err := get(p)
		if err != nil {
			return nil, err
		}
		hdr := &tar.Header{Name: strings.TrimPrefix(p, "/"), Mode: 0o644, Size: int64(len(b))}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, &asgen.Error{Op: "archive.BuildTar", Kind: asgen.ErrInternal, Inner: err}
		}
		if _, err := tw.Write(b); err != nil {
			return nil, &asgen.Error{Op: "archive.BuildTar", Kind: asgen.ErrInternal, Inner: err}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, &asgen.Error{Op: "archive.BuildTar", Kind: asgen.ErrInternal, Inner: err}
	}
	return buf.Bytes(), nil
}
