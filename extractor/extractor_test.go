package extractor

import (
	"context"
	"testing"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/composer"
	"github.com/distrocat/asgen/datastore"
	"github.com/distrocat/asgen/iconhandler"
)

type fakePackage struct {
	name, version, arch string
	files                map[string][]byte
	descriptions         map[string]string
	gstreamer            asgen.GStreamerInfo
	hasGStreamer         bool
	finished             int
}

func (p *fakePackage) Name() string         { return p.name }
func (p *fakePackage) Version() string      { return p.version }
func (p *fakePackage) Architecture() string { return p.arch }
func (p *fakePackage) Kind() asgen.PackageKind { return asgen.KindReal }
func (p *fakePackage) Contents() []string {
	names := make([]string, 0, len(p.files))
	for n := range p.files {
		names = append(names, n)
	}
	return names
}
func (p *fakePackage) ReadFile(path string) ([]byte, error) {
	if b, ok := p.files[path]; ok {
		return b, nil
	}
	return []byte{0}, nil
}
func (p *fakePackage) Descriptions() map[string]string { return p.descriptions }
func (p *fakePackage) Maintainer() string              { return "" }
func (p *fakePackage) DesktopEntryTranslator() (asgen.DesktopTranslator, bool) {
	return nil, false
}
func (p *fakePackage) GStreamer() (asgen.GStreamerInfo, bool) { return p.gstreamer, p.hasGStreamer }
func (p *fakePackage) Finish() error                          { p.finished++; return nil }

// stubComposer always returns one fixed component.
type stubComposer struct {
	result composer.Result
	err    error
}

func (s stubComposer) Compose(u composer.Unit) (composer.Result, error) { return s.result, s.err }

func newComponent(cid, kind string) *asgen.Component {
	c := &asgen.Component{ComponentID: cid, Kind: kind, Summary: map[string]string{}, Description: map[string]string{}}
	c.SetNormalized([]byte(cid))
	return c
}

func newExtractor(t *testing.T, comp *asgen.Component) (*Extractor, *datastore.Store) {
	t.Helper()
	ds, err := datastore.Open(context.Background(), t.TempDir()+"/data.db", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ds.Close() })
	return &Extractor{
		Composer:  stubComposer{result: composer.Result{Components: []*asgen.Component{comp}}},
		DataStore: ds,
		Icons:     iconhandler.New("", nil, t.TempDir(), nil),
		Format:    datastore.FormatXML,
		Hash:      func(b []byte) asgen.Digest { return asgen.SumDigest(b) },
		Serialize: func(c *asgen.Component) ([]byte, error) { return []byte("<component/>"), nil },
	}, ds
}

func TestExtractProducesComponentAndCallsFinish(t *testing.T) {
	comp := newComponent("org.example.Hello.desktop", "desktop-application")
	e, _ := newExtractor(t, comp)
	pkg := &fakePackage{name: "hello", version: "1.0", arch: "amd64", descriptions: map[string]string{"C": "A greeting tool"}}
	result, err := e.Extract(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if pkg.finished != 1 {
		t.Errorf("expected Finish called once, got %d", pkg.finished)
	}
	if len(result.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(result.Components))
	}
	if got := result.Hints["org.example.Hello.desktop"]; len(got) != 1 || got[0].Tag != "description-from-package" {
		t.Errorf("expected description-from-package hint, got %+v", got)
	}
	if result.Components[0].Description["C"] != "A greeting tool" {
		t.Errorf("expected packaging description injected, got %+v", result.Components[0].Description)
	}
}

func TestExtractNoDescriptionEmitsMissingHint(t *testing.T) {
	comp := newComponent("org.example.NoDesc.desktop", "desktop-application")
	e, _ := newExtractor(t, comp)
	pkg := &fakePackage{name: "nodesc", version: "1.0", arch: "amd64"}
	result, err := e.Extract(context.Background(), pkg)
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Hints["org.example.NoDesc.desktop"]; len(got) != 1 || got[0].Tag != "description-missing" {
		t.Errorf("expected description-missing hint, got %+v", got)
	}
}

func TestExtractSamePackageRerunKeepsGCIDNoHint(t *testing.T) {
	comp := newComponent("org.example.Hello.desktop", "desktop-application")
	e, ds := newExtractor(t, comp)
	// Serialize embeds the producing package-id, as the real catalog
	// serializers do via PackageNames/provenance fields.
	e.Serialize = func(c *asgen.Component) ([]byte, error) { return []byte("<component>hello/1.0/amd64</component>"), nil }
	pkg1 := &fakePackage{name: "hello", version: "1.0", arch: "amd64", descriptions: map[string]string{"C": "x"}}
	r1, err := e.Extract(context.Background(), pkg1)
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.AddGeneratorResult(datastore.FormatXML, r1, false, e.Serialize); err != nil {
		t.Fatal(err)
	}

	comp2 := newComponent("org.example.Hello.desktop", "desktop-application")
	e.Composer = stubComposer{result: composer.Result{Components: []*asgen.Component{comp2}}}
	pkg2 := &fakePackage{name: "hello", version: "1.0", arch: "amd64", descriptions: map[string]string{"C": "x"}}
	r2, err := e.Extract(context.Background(), pkg2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r2.GCIDs) != 1 {
		t.Fatalf("expected gcid reference preserved, got %+v", r2.GCIDs)
	}
	if got := r2.Hints["org.example.Hello.desktop"]; len(got) != 0 {
		t.Errorf("expected no duplicate hint on same-package rerun, got %+v", got)
	}
}

func TestExtractDifferentPackageDuplicateEmitsHintButKeepsGCID(t *testing.T) {
	comp := newComponent("org.example.Hello.desktop", "desktop-application")
	e, ds := newExtractor(t, comp)
	e.Serialize = func(c *asgen.Component) ([]byte, error) { return []byte("<component>hello/1.0/amd64</component>"), nil }
	pkg1 := &fakePackage{name: "hello", version: "1.0", arch: "amd64", descriptions: map[string]string{"C": "x"}}
	r1, _ := e.Extract(context.Background(), pkg1)
	if err := ds.AddGeneratorResult(datastore.FormatXML, r1, false, e.Serialize); err != nil {
		t.Fatal(err)
	}

	comp2 := newComponent("org.example.Hello.desktop", "desktop-application")
	e.Composer = stubComposer{result: composer.Result{Components: []*asgen.Component{comp2}}}
	pkg2 := &fakePackage{name: "hello-clone", version: "1.0-1", arch: "amd64", descriptions: map[string]string{"C": "x"}}
	r2, err := e.Extract(context.Background(), pkg2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r2.GCIDs) != 1 {
		t.Fatalf("expected packages[hello-clone] to still reference the shared gcid, got %+v", r2.GCIDs)
	}
	if got := r2.Hints["org.example.Hello.desktop"]; len(got) != 1 || got[0].Tag != "metainfo-duplicate-id" {
		t.Errorf("expected metainfo-duplicate-id hint, got %+v", got)
	}
}

func TestExtractComposerFailureBecomesGeneralHint(t *testing.T) {
	e, _ := newExtractor(t, nil)
	e.Composer = stubComposer{err: &asgen.Error{Kind: asgen.ErrBackend, Message: "broken archive"}}
	pkg := &fakePackage{name: "broken", version: "1.0", arch: "amd64"}
	result, err := e.Extract(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(result.Components) != 0 {
		t.Errorf("expected no components on composer failure, got %+v", result.Components)
	}
	if got := result.Hints[asgen.GeneralHintTarget]; len(got) != 1 || got[0].Tag != "compose-failed" {
		t.Errorf("expected compose-failed general hint, got %+v", result.Hints)
	}
}

func TestExtractNoInstallCandidateHint(t *testing.T) {
	comp := newComponent("org.example.Orphan.desktop", "desktop-application")
	e, _ := newExtractor(t, comp)
	// Components of a real package get that package's id as their
	// association; the injection package gives its components none.
	pkg := &fakePackage{name: ExtraMetainfoPackageName, version: "1.0", arch: "amd64", descriptions: map[string]string{"C": "x"}}
	result, err := e.Extract(context.Background(), pkg)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, h := range result.Hints["org.example.Orphan.desktop"] {
		if h.Tag == "no-install-candidate" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected no-install-candidate hint, got %+v", result.Hints)
	}
}
