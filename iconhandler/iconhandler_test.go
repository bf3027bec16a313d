package iconhandler

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/distrocat/asgen"
)

type fakePackage struct {
	files map[string][]byte
}

func (p fakePackage) Contents() []string {
	names := make([]string, 0, len(p.files))
	for n := range p.files {
		names = append(names, n)
	}
	return names
}

func (p fakePackage) ReadFile(path string) ([]byte, error) {
	if b, ok := p.files[path]; ok {
		return b, nil
	}
	return []byte{0}, nil
}

func testPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestResolveCachesDefaultSize(t *testing.T) {
	mediaPool := t.TempDir()
	pkg := fakePackage{files: map[string][]byte{
		"/usr/share/icons/hicolor/64x64/apps/hello.png": testPNG(t, 64),
	}}
	h := New("", []Policy{
		{Size: Size{Width: 64, Height: 64, Scale: 1}, State: asgen.IconCachedOnly},
	}, mediaPool, nil)

	c := &asgen.Component{ComponentID: "org.example.Hello.desktop", Icons: []asgen.Icon{{Filename: "hello"}}}
	hints := h.Resolve(c, pkg, "org/example/org.example.Hello.desktop/sha256:deadbeef")
	if len(hints) != 0 {
		t.Fatalf("unexpected hints: %+v", hints)
	}
	if len(c.Icons) != 1 {
		t.Fatalf("expected 1 icon, got %+v", c.Icons)
	}
	if _, err := os.Stat(c.Icons[0].CachedPath); err != nil {
		t.Errorf("expected cached icon file to exist: %v", err)
	}
}

func TestResolveNoIconNameEmitsHint(t *testing.T) {
	h := New("", nil, t.TempDir(), nil)
	c := &asgen.Component{ComponentID: "org.example.NoIcon"}
	hints := h.Resolve(c, fakePackage{}, "gcid")
	if len(hints) != 1 || hints[0].Tag != "icon-not-found" {
		t.Errorf("expected icon-not-found, got %+v", hints)
	}
}

func TestResolveMissingFileEmitsHint(t *testing.T) {
	h := New("", []Policy{{Size: Size{64, 64, 1}, State: asgen.IconCachedOnly}}, t.TempDir(), nil)
	c := &asgen.Component{ComponentID: "org.example.Hello", Icons: []asgen.Icon{{Filename: "doesnotexist"}}}
	hints := h.Resolve(c, fakePackage{}, "gcid")
	if len(hints) != 1 || hints[0].Tag != "icon-not-found" {
		t.Errorf("expected icon-not-found, got %+v", hints)
	}
}

func TestResolveSiblingPackageLookup(t *testing.T) {
	sibling := fakePackage{files: map[string][]byte{
		"/usr/share/icons/hicolor/64x64/apps/shared.png": testPNG(t, 64),
	}}
	h := New("", []Policy{{Size: Size{64, 64, 1}, State: asgen.IconCachedOnly}}, t.TempDir(), []ContentSource{sibling})
	c := &asgen.Component{ComponentID: "org.example.Shared", Icons: []asgen.Icon{{Filename: "shared"}}}
	hints := h.Resolve(c, fakePackage{}, "gcid")
	if len(hints) != 0 {
		t.Fatalf("unexpected hints: %+v", hints)
	}
	if len(c.Icons) != 1 {
		t.Fatalf("expected icon resolved from sibling package, got %+v", c.Icons)
	}
}

func TestRenderAndCacheWritesUnderGCIDDir(t *testing.T) {
	root := t.TempDir()
	h := New("", nil, root, nil)
	c := &asgen.Component{ComponentID: "org.example.Hello"}
	p := Policy{Size: Size{64, 64, 1}, State: asgen.IconCachedOnly}
	icon, hints, ok := h.renderAndCache(c, "org/example/org.example.Hello/sha256:x", p, "hello", testPNG(t, 64))
	if !ok {
		t.Fatalf("renderAndCache failed: %+v", hints)
	}
	want := filepath.Join(root, "org", "example", "org.example.Hello", "sha256:x", "icons", "64x64", "hello.png")
	if icon.CachedPath != want {
		t.Errorf("CachedPath = %q, want %q", icon.CachedPath, want)
	}
}

func TestRenderAndCacheSkipsUpscaleWhenDisabled(t *testing.T) {
	h := New("", nil, t.TempDir(), nil)
	c := &asgen.Component{ComponentID: "org.example.Hello"}
	p := Policy{Size: Size{64, 64, 1}, State: asgen.IconCachedOnly, AllowUpscale: false}
	_, hints, ok := h.renderAndCache(c, "gcid", p, "hello", testPNG(t, 48))
	if ok {
		t.Fatalf("expected renderAndCache to decline an upscale, got an icon with hints %+v", hints)
	}
}

func TestRenderAndCacheUpscalesWhenEnabled(t *testing.T) {
	h := New("", nil, t.TempDir(), nil)
	c := &asgen.Component{ComponentID: "org.example.Hello"}
	p := Policy{Size: Size{64, 64, 1}, State: asgen.IconCachedOnly, AllowUpscale: true}
	icon, hints, ok := h.renderAndCache(c, "gcid", p, "hello", testPNG(t, 48))
	if !ok {
		t.Fatalf("renderAndCache failed: %+v", hints)
	}
	if icon.Width != 64 || icon.Height != 64 {
		t.Errorf("expected a 64x64 icon, got %dx%d", icon.Width, icon.Height)
	}
	found := false
	for _, h := range hints {
		if h.Tag == "icon-scaled-up" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected icon-scaled-up hint, got %+v", hints)
	}
}

func TestResolveUpscaleDisabledDegradesToIconNotFound(t *testing.T) {
	pkg := fakePackage{files: map[string][]byte{
		"/usr/share/icons/hicolor/48x48/apps/hello.png": testPNG(t, 48),
	}}
	h := New("", []Policy{
		{Size: Size{Width: 64, Height: 64, Scale: 1}, State: asgen.IconCachedOnly, AllowUpscale: false},
		{Size: Size{Width: 48, Height: 48, Scale: 1}, State: asgen.IconCachedOnly},
	}, t.TempDir(), nil)

	c := &asgen.Component{ComponentID: "org.example.Hello", Icons: []asgen.Icon{{Filename: "hello"}}}
	hints := h.Resolve(c, pkg, "gcid")

	for _, i := range c.Icons {
		if i.Width == 64 {
			t.Fatalf("expected no 64x64 icon with upscaling disabled, got %+v", c.Icons)
		}
	}
	foundNotFound := false
	for _, hh := range hints {
		if hh.Tag == "icon-not-found" {
			foundNotFound = true
		}
	}
	if !foundNotFound {
		t.Errorf("expected icon-not-found since the mandatory 64x64 entry couldn't be satisfied, got %+v", hints)
	}
}

func TestResolveUpscaleEnabledPromotesSmallerCandidate(t *testing.T) {
	pkg := fakePackage{files: map[string][]byte{
		"/usr/share/icons/hicolor/48x48/apps/hello.png": testPNG(t, 48),
	}}
	h := New("", []Policy{
		{Size: Size{Width: 64, Height: 64, Scale: 1}, State: asgen.IconCachedOnly, AllowUpscale: true},
		{Size: Size{Width: 48, Height: 48, Scale: 1}, State: asgen.IconCachedOnly},
	}, t.TempDir(), nil)

	c := &asgen.Component{ComponentID: "org.example.Hello", Icons: []asgen.Icon{{Filename: "hello"}}}
	hints := h.Resolve(c, pkg, "gcid")

	foundDefault := false
	for _, i := range c.Icons {
		if i.Width == 64 && i.Height == 64 {
			foundDefault = true
		}
	}
	if !foundDefault {
		t.Fatalf("expected a promoted 64x64 icon, got %+v", c.Icons)
	}
	foundScaledUp := false
	for _, hh := range hints {
		if hh.Tag == "icon-scaled-up" {
			foundScaledUp = true
		}
	}
	if !foundScaledUp {
		t.Errorf("expected icon-scaled-up hint, got %+v", hints)
	}
}
