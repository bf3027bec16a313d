// Package dummy is the "dummy" backend named in spec §6's Backend enum:
// a filesystem-only PackageIndex with no real package-format parsing,
// used for tests and for exercising the engine without a real
// distribution's tooling installed. It is grounded on claircore's own
// convention of shipping simple fixture-backed scanner implementations
// alongside the real ones for use in tests (e.g. indexer/layerscanner's
// test fakes), generalized here into something registerable like a real
// backend.
//
// Layout: archiveRoot/<suite>/<section>/<arch>/ contains one pair of
// files per package: "<name>_<version>.tar" holding the package's file
// contents as a plain tar archive, and an optional
// "<name>_<version>.json" sidecar carrying maintainer/description/
// GStreamer metadata the tar format has no room for.
package dummy

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/archive"
	"github.com/distrocat/asgen/backend"
)

func init() {
	backend.Register("dummy", func(archiveRoot string) (backend.PackageIndex, error) {
		return &Index{root: archiveRoot}, nil
	})
}

// Index is the dummy backend's PackageIndex.
type Index struct {
	root string
}

// sidecar is the optional "<name>_<version>.json" metadata format.
type sidecar struct {
	Maintainer   string              `json:"maintainer,omitempty"`
	Descriptions map[string]string   `json:"descriptions,omitempty"`
	GStreamer    *asgen.GStreamerInfo `json:"gstreamer,omitempty"`
}

func (ix *Index) sectionDir(suite, section, arch string) string {
	return filepath.Join(ix.root, suite, section, arch)
}

// Enumerate lists every "<name>_<version>.tar" file found in the
// (suite, section, arch) directory. forced is accepted but unused: the
// dummy backend has no "unchanged since last run" index to shortcut.
func (ix *Index) Enumerate(ctx context.Context, suite, section, arch string, forced bool) ([]asgen.Package, error) {
	dir := ix.sectionDir(suite, section, arch)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &asgen.Error{Op: "dummy.Enumerate", Kind: asgen.ErrBackend, Inner: err}
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".tar") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pkgs := make([]asgen.Package, 0, len(names))
	for _, n := range names {
		p, err := ix.loadPackage(filepath.Join(dir, n), arch)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

// Changed always reports true: the dummy backend has no persisted index
// state to compare against, so the engine always re-enumerates.
func (ix *Index) Changed(ctx context.Context, suite, section, arch string) (bool, error) {
	return true, nil
}

// PackageFor resolves one "<name>_<version>.tar" file directly, used by
// the "process-file" CLI subcommand (spec §6). The package's
// architecture is taken from the enclosing directory name, whether or
// not the path follows the archiveRoot layout.
func (ix *Index) PackageFor(ctx context.Context, path string) (asgen.Package, error) {
	arch := filepath.Base(filepath.Dir(path))
	return ix.loadPackage(path, arch)
}

func (ix *Index) loadPackage(tarPath, arch string) (asgen.Package, error) {
	base := strings.TrimSuffix(filepath.Base(tarPath), ".tar")
	name, version, ok := strings.Cut(base, "_")
	if !ok {
		return nil, &asgen.Error{Op: "dummy.loadPackage", Kind: asgen.ErrBackend, Message: "malformed package filename " + base}
	}

	data, err := os.ReadFile(tarPath)
	if err != nil {
		return nil, &asgen.Error{Op: "dummy.loadPackage", Kind: asgen.ErrBackend, Inner: err}
	}
	paths, err := archive.TarPaths(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var sc sidecar
	if sb, err := os.ReadFile(strings.TrimSuffix(tarPath, ".tar") + ".json"); err == nil {
		if jerr := json.Unmarshal(sb, &sc); jerr != nil {
			return nil, &asgen.Error{Op: "dummy.loadPackage", Kind: asgen.ErrBackend, Message: "malformed sidecar for " + base, Inner: jerr}
		}
	}

	return &Package{
		name: name, version: version, arch: arch,
		tarData: data, paths: paths, sidecar: sc,
	}, nil
}

// Package is the dummy backend's asgen.Package implementation: an
// in-memory tar archive plus the optional sidecar metadata.
type Package struct {
	name, version, arch string
	tarData             []byte
	paths               []string
	sidecar             sidecar
}

func (p *Package) Name() string         { return p.name }
func (p *Package) Version() string      { return p.version }
func (p *Package) Architecture() string { return p.arch }
func (p *Package) Kind() asgen.PackageKind { return asgen.KindReal }

func (p *Package) Contents() []string { return p.paths }

// ReadFile extracts path from the package's tar archive. A miss returns
// the one-byte "absent" sentinel spec §9 calls for, not an error.
func (p *Package) ReadFile(path string) ([]byte, error) {
	got, err := archive.TarEntries(bytes.NewReader(p.tarData), []string{path})
	if err != nil {
		return nil, err
	}
	if b, ok := got[path]; ok {
		return b, nil
	}
	return []byte{0}, nil
}

func (p *Package) Descriptions() map[string]string { return p.sidecar.Descriptions }
func (p *Package) Maintainer() string              { return p.sidecar.Maintainer }

func (p *Package) DesktopEntryTranslator() (asgen.DesktopTranslator, bool) { return nil, false }

func (p *Package) GStreamer() (asgen.GStreamerInfo, bool) {
	if p.sidecar.GStreamer == nil {
		return asgen.GStreamerInfo{}, false
	}
	return *p.sidecar.GStreamer, true
}

// Finish is a no-op: the dummy backend holds its tar data in memory and
// opens no file handles or scratch files.
func (p *Package) Finish() error { return nil }
