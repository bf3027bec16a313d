package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/archive"
	"github.com/distrocat/asgen/composer"
	"github.com/distrocat/asgen/composer/refcomposer"
	"github.com/distrocat/asgen/contentsstore"
	"github.com/distrocat/asgen/datastore"
	"github.com/distrocat/asgen/iconhandler"
	"github.com/distrocat/asgen/jobpool"

	_ "github.com/distrocat/asgen/backend/dummy"
)

func writeArchivePackage(t *testing.T, archiveRoot, suite, section, arch, name, version string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(archiveRoot, suite, section, arch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for p, content := range files {
		hdr := &tar.Header{Name: p, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	base := name + "_" + version
	if err := os.WriteFile(filepath.Join(dir, base+".tar"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestDeps(t *testing.T, archiveRoot string) Deps {
	t.Helper()
	data, err := datastore.Open(context.Background(), filepath.Join(t.TempDir(), "data.db"), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { data.Close() })
	contents, err := contentsstore.Open(context.Background(), filepath.Join(t.TempDir(), "contents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { contents.Close() })

	return Deps{
		Contents:  contents,
		Data:      data,
		Hints:     asgen.NewHintRegistry(),
		Format:    datastore.FormatXML,
		Serialize: func(c *asgen.Component) ([]byte, error) { return []byte("<component>" + c.ComponentID + "</component>"), nil },
		Hash:      func(b []byte) asgen.Digest { return asgen.SumDigest(b) },
		NewComposer: func() composer.Composer {
			return refcomposer.New()
		},
		MediaExportDir: t.TempDir(),
		IconPolicies: []iconhandler.Policy{
			{Size: iconhandler.Size{Width: 64, Height: 64, Scale: 1}, State: asgen.IconCachedOnly},
		},
		Pool:         jobpool.New(2),
		ArchiveRoots: map[string]string{"noble": archiveRoot},
		Backends:     map[string]string{"noble": "dummy"},
	}
}

func TestRunFreshInstallProducesCatalogAndMetadata(t *testing.T) {
	archiveRoot := t.TempDir()
	writeArchivePackage(t, archiveRoot, "noble", "main", "amd64", "hello", "1.0", map[string]string{
		"usr/share/applications/hello.desktop": "[Desktop Entry]\nType=Application\nName=Hello\nX-AppStream-ID=org.example.Hello.desktop\n",
	})

	deps := newTestDeps(t, archiveRoot)
	suites := []*asgen.Suite{
		{Name: "noble", Sections: []string{"main"}, Architectures: []string{"amd64"}},
	}
	e := New(deps, suites, nil)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	active, err := deps.Data.ActiveGCIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active gcid, got %d: %+v", len(active), active)
	}
	state, ok, err := deps.Data.PackageState("hello/1.0/amd64")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || state == "" {
		t.Errorf("expected hello/1.0/amd64 to have a recorded generator result")
	}
}

func TestRunSectionWithNoPackagesProducesNoGCIDs(t *testing.T) {
	archiveRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(archiveRoot, "noble", "main", "amd64"), 0o755); err != nil {
		t.Fatal(err)
	}
	deps := newTestDeps(t, archiveRoot)
	suites := []*asgen.Suite{
		{Name: "noble", Sections: []string{"main"}, Architectures: []string{"amd64"}},
	}
	e := New(deps, suites, nil)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	active, err := deps.Data.ActiveGCIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active gcids, got %d", len(active))
	}
}

func TestIsInteresting(t *testing.T) {
	cases := []struct {
		paths []string
		want  bool
	}{
		{[]string{"/usr/share/applications/a.desktop"}, true},
		{[]string{"/usr/share/metainfo/a.metainfo.xml"}, true},
		{[]string{"/usr/bin/a"}, false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isInteresting(c.paths); got != c.want {
			t.Errorf("isInteresting(%v) = %v, want %v", c.paths, got, c.want)
		}
	}
}

func TestCleanupStatisticsSuppressesConsecutiveDuplicates(t *testing.T) {
	deps := newTestDeps(t, t.TempDir())
	e := New(deps, nil, nil)

	mk := func(ts int64, suite, section string, count int) datastore.Record {
		return datastore.Record{Timestamp: ts, Fields: map[string]any{
			"suite": suite, "section": section, "count": int64(count),
		}}
	}
	recs := []datastore.Record{
		mk(1, "noble", "main", 5),
		mk(2, "noble", "main", 5),
		mk(3, "noble", "main", 6),
		mk(4, "jammy", "main", 5),
	}
	for _, r := range recs {
		if err := deps.Data.AddStatistics(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.cleanupStatistics(context.Background()); err != nil {
		t.Fatal(err)
	}
	remaining, err := deps.Data.GetStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 3 {
		t.Fatalf("expected 3 remaining statistics entries, got %d: %+v", len(remaining), remaining)
	}
}

func TestRunWritesExportArtifacts(t *testing.T) {
	archiveRoot := t.TempDir()
	writeArchivePackage(t, archiveRoot, "noble", "main", "amd64", "hello", "1.0", map[string]string{
		"usr/share/applications/hello.desktop": "[Desktop Entry]\nType=Application\nName=Hello\nIcon=hello\nX-AppStream-ID=org.example.Hello.desktop\n",
	})

	deps := newTestDeps(t, archiveRoot)
	dataDir := t.TempDir()
	hintsDir := t.TempDir()
	deps.DataExportDir = dataDir
	deps.HintsExportDir = hintsDir

	suites := []*asgen.Suite{
		{Name: "noble", Sections: []string{"main"}, Architectures: []string{"amd64"}},
	}
	e := New(deps, suites, nil)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	catalogPath := filepath.Join(dataDir, "noble", "main", "Components-amd64.xml.gz")
	gz, err := os.Open(catalogPath)
	if err != nil {
		t.Fatalf("expected catalog file: %v", err)
	}
	defer gz.Close()
	r, err := archive.NewReader(gz, archive.Gzip)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	catalog, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading catalog: %v", err)
	}
	if !bytes.Contains(catalog, []byte("org.example.Hello.desktop")) {
		t.Errorf("expected catalog to mention the component, got %q", catalog)
	}

	idxPath := filepath.Join(dataDir, "noble", "main", "CID-Index-amd64.json.gz")
	if _, err := os.Stat(idxPath); err != nil {
		t.Errorf("expected CID index file: %v", err)
	}

	hintDefsPath := filepath.Join(hintsDir, "noble", "hint-definitions.json")
	if _, err := os.Stat(hintDefsPath); err != nil {
		t.Errorf("expected hint-definitions.json: %v", err)
	}

	hintsPath := filepath.Join(hintsDir, "noble", "main", "Hints-amd64.json.xz")
	hf, err := os.Open(hintsPath)
	if err != nil {
		t.Fatalf("expected hints file for icon-not-found hint: %v", err)
	}
	defer hf.Close()
	hr, err := archive.NewReader(hf, archive.XZ)
	if err != nil {
		t.Fatalf("xz reader: %v", err)
	}
	hintsData, err := io.ReadAll(hr)
	if err != nil {
		t.Fatalf("reading hints: %v", err)
	}
	if !bytes.Contains(hintsData, []byte("icon-not-found")) {
		t.Errorf("expected icon-not-found in hints file, got %q", hintsData)
	}
}

func TestNewBackendDefaultsToDummy(t *testing.T) {
	deps := newTestDeps(t, t.TempDir())
	deps.Backends = nil
	e := New(deps, nil, nil)
	ix, err := e.newBackend(&asgen.Suite{Name: "unlisted"})
	if err != nil {
		t.Fatalf("newBackend: %v", err)
	}
	if ix == nil {
		t.Error("expected a non-nil PackageIndex")
	}
}
