// Package iconhandler implements C3: resolving, rendering, and caching
// the icon files a Component references, per spec §4.3.
//
// This implementation simplifies spec §4.3's full XDG theme-index model
// (Fixed/Scalable/Threshold directory matching driven by a parsed
// index.theme) down to the two layouts that matter in practice: the
// hicolor-style "<theme>/<size>x<size>/apps/<name>.(png|svg|svgz)"
// fixed-size tree, and the legacy flat pixmap directory. Full
// Scalable/Threshold matching is a straightforward extension of
// search's per-theme loop if a theme ever needs it; nothing else in the pipeline
// depends on the simplification.
package iconhandler

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/distrocat/asgen"
)

const (
	minIconSize     = 48
	defaultIconSize = 64
	legacyPixmapDir = "/usr/share/pixmaps/"
)

// Size is one configured (width, height, scale) request (spec §4.3,
// "the given set of enabled sizes").
type Size struct {
	Width, Height, Scale int
}

func (s Size) name() string {
	base := strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
	if s.Scale > 1 {
		return base + "@" + strconv.Itoa(s.Scale)
	}
	return base
}

// Policy configures how one size is satisfied (spec §4.3, "set of
// {size, scale, state}").
type Policy struct {
	Size          Size
	State         asgen.IconState
	AllowUpscale  bool
}

// themeList is the fixed, alphabetically-stable theme preference order
// spec §4.3 names: "hicolor first, then the suite's configured theme,
// then Adwaita, AdwaitaLegacy, breeze".
func themeList(suiteTheme string) []string {
	themes := []string{"hicolor"}
	if suiteTheme != "" && suiteTheme != "hicolor" {
		themes = append(themes, suiteTheme)
	}
	rest := []string{"Adwaita", "AdwaitaLegacy", "breeze"}
	sort.Strings(rest)
	for _, t := range rest {
		if t != suiteTheme {
			themes = append(themes, t)
		}
	}
	return themes
}

// ContentSource is the minimal view of a package an icon search needs:
// its file listing and a way to read a file's bytes.
type ContentSource interface {
	Contents() []string
	ReadFile(path string) ([]byte, error)
}

// Handler resolves icons for components produced within one (suite,
// section, arch) run. Constructed once per run and shared read-only
// across extractor workers except for the rendering path, which is
// serialized (spec §4.3, "Thread discipline").
type Handler struct {
	suiteTheme string
	policies   []Policy
	mediaPool  string

	mu       sync.Mutex // serializes rendering, per spec §4.3
	packages []ContentSource
}

// New constructs a Handler for one run. candidates is every package
// indexed as a sibling-lookup source (spec §4.3 step 2, "any package
// indexed at construction time"); mediaPool is the filesystem root icons
// are cached under ("<mediaExportDir>/pool").
func New(suiteTheme string, policies []Policy, mediaPool string, candidates []ContentSource) *Handler {
	return &Handler{suiteTheme: suiteTheme, policies: policies, mediaPool: mediaPool, packages: candidates}
}

// rawIconName returns the Filename of the component's first icon entry,
// or "" when it has none. Resolve searches for that name as given (an
// extension such as ".png" is kept as part of the name) and then
// replaces the whole slice.
func rawIconName(c *asgen.Component) string {
	if len(c.Icons) == 0 {
		return ""
	}
	return c.Icons[0].Filename
}

// Resolve implements spec §4.3's algorithm for one component: it clears
// c.Icons, searches for a file per enabled size, renders/caches hits,
// and returns the hints raised along the way. gcid is the component's
// already-computed global id, used to build cache paths and remote refs.
func (h *Handler) Resolve(c *asgen.Component, own ContentSource, gcid string) []asgen.Hint {
	name := rawIconName(c)
	c.Icons = nil
	if name == "" {
		return []asgen.Hint{{ComponentID: c.ComponentID, Tag: "icon-not-found"}}
	}

	var hints []asgen.Hint
	found := map[Size][]byte{} // size -> raw bytes (png/svg) found for it

	for _, p := range h.policies {
		data, isSVG := h.search(own, p.Size, name)
		if data == nil {
			continue
		}
		found[p.Size] = data
		_ = isSVG
	}

	haveDefault := false
	for _, p := range h.policies {
		data, ok := found[p.Size]
		if !ok {
			// attempt downscale from any larger hit at the same scale.
			data, ok = h.bestLargerMatch(found, p.Size)
		}
		if !ok && p.AllowUpscale && p.Size.Width == defaultIconSize && p.Size.Height == defaultIconSize {
			data, ok = h.bestSmallerMatch(found, p.Size)
		}
		if !ok {
			continue
		}
		icon, hs, ok := h.renderAndCache(c, gcid, p, name, data)
		hints = append(hints, hs...)
		if !ok {
			continue
		}
		c.Icons = append(c.Icons, icon)
		if p.Size.Width == defaultIconSize && p.Size.Height == defaultIconSize {
			haveDefault = true
		}
	}

	if !haveDefault {
		if data, ok := h.bestLargerMatch(found, Size{Width: defaultIconSize, Height: defaultIconSize, Scale: 1}); ok {
			p := Policy{Size: Size{Width: defaultIconSize, Height: defaultIconSize, Scale: 1}, State: asgen.IconCachedOnly}
			icon, hs, ok := h.renderAndCache(c, gcid, p, name, data)
			hints = append(hints, hs...)
			if ok {
				c.Icons = append(c.Icons, icon)
				haveDefault = true
			}
		}
	}
	if !haveDefault {
		hints = append(hints, asgen.Hint{ComponentID: c.ComponentID, Tag: "icon-not-found"})
	}
	return hints
}

// search looks for name at the given size, own package first, then
// every candidate package, trying each theme and the legacy pixmap
// directory. It returns the raw file bytes and whether they're SVG.
func (h *Handler) search(own ContentSource, size Size, name string) ([]byte, bool) {
	sources := make([]ContentSource, 0, len(h.packages)+1)
	if own != nil {
		sources = append(sources, own)
	}
	sources = append(sources, h.packages...)

	for _, theme := range themeList(h.suiteTheme) {
		sizeDir := size.name()
		for _, ext := range []string{".png", ".svg", ".svgz"} {
			path := "/usr/share/icons/" + theme + "/" + sizeDir + "/apps/" + name + ext
			for _, src := range sources {
				if data := readExisting(src, path); data != nil {
					return data, ext == ".svg" || ext == ".svgz"
				}
			}
		}
	}
	if size.Width == defaultIconSize && size.Height == defaultIconSize {
		for _, ext := range []string{".png", ".xpm"} {
			path := legacyPixmapDir + name + ext
			for _, src := range sources {
				if data := readExisting(src, path); data != nil {
					return data, false
				}
			}
		}
	}
	return nil, false
}

func readExisting(p ContentSource, path string) []byte {
	if p == nil {
		return nil
	}
	b, err := p.ReadFile(path)
	if err != nil || len(b) <= 1 {
		return nil
	}
	return b
}

// bestLargerMatch picks the smallest already-found size that is still
// >= target, approximating spec §4.3 step 3's "prefer to downscale from
// a larger existing match".
func (h *Handler) bestLargerMatch(found map[Size][]byte, target Size) ([]byte, bool) {
	var best Size
	var data []byte
	for s, b := range found {
		if s.Width < target.Width || s.Scale != target.Scale {
			continue
		}
		if data == nil || s.Width < best.Width {
			best, data = s, b
		}
	}
	return data, data != nil
}

// bestSmallerMatch picks the largest already-found size still >=
// minIconSize, for promoting via upscale to the default size (spec
// §4.3 step 3, "if upscaling is enabled and the target is the default
// 64x64 size, promote an icon >= 48x48 from a smaller candidate").
// Callers are responsible for checking the policy's AllowUpscale flag
// and restricting this to the default size.
func (h *Handler) bestSmallerMatch(found map[Size][]byte, target Size) ([]byte, bool) {
	var best Size
	var data []byte
	for s, b := range found {
		if s.Width >= target.Width || s.Scale != target.Scale || s.Width < minIconSize {
			continue
		}
		if data == nil || s.Width > best.Width {
			best, data = s, b
		}
	}
	return data, data != nil
}

// renderAndCache decodes data (PNG/SVG) to exactly p.Size, writes it
// into the media pool when the policy calls for caching, and returns
// the resulting Icon plus any hints.
func (h *Handler) renderAndCache(c *asgen.Component, gcid string, p Policy, name string, data []byte) (asgen.Icon, []asgen.Hint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	img, err := decodeImage(data)
	if err != nil {
		return asgen.Icon{}, []asgen.Hint{{ComponentID: c.ComponentID, Tag: "icon-render-failed", Vars: map[string]string{"error": err.Error()}}}, false
	}

	srcW := img.Bounds().Dx()
	if p.Size.Width == defaultIconSize && srcW < minIconSize {
		return asgen.Icon{}, []asgen.Hint{{ComponentID: c.ComponentID, Tag: "icon-too-small"}}, false
	}

	var hints []asgen.Hint
	targetW := p.Size.Width * maxInt(p.Scale1(), 1)
	if srcW < targetW {
		if !p.AllowUpscale {
			// downscaling engine only; skip rather than producing a
			// blurry upscaled result the policy didn't ask for.
			return asgen.Icon{}, nil, false
		}
		hints = append(hints, asgen.Hint{ComponentID: c.ComponentID, Tag: "icon-scaled-up"})
	}
	resized := imaging.Resize(img, targetW, p.Size.Height*maxInt(p.Scale1(), 1), imaging.Lanczos)

	icon := asgen.Icon{Width: p.Size.Width, Height: p.Size.Height, Scale: p.Size.Scale, State: p.State}
	fname := name + ".png"
	icon.Filename = fname

	switch p.State {
	case asgen.IconCachedOnly, asgen.IconCachedRemote:
		cachedPath := filepath.Join(h.mediaPool, filepath.FromSlash(gcid), "icons", p.Size.name(), fname)
		if err := writePNG(cachedPath, resized); err != nil {
			return asgen.Icon{}, []asgen.Hint{{ComponentID: c.ComponentID, Tag: "icon-cache-write-failed", Vars: map[string]string{"error": err.Error()}}}, false
		}
		icon.CachedPath = cachedPath
	}
	switch p.State {
	case asgen.IconRemoteOnly, asgen.IconCachedRemote:
		icon.RemoteRef = gcid + "/icons/" + p.Size.name() + "/" + fname
	}
	return icon, hints, true
}

// Scale1 normalizes a zero scale to 1, since most components are
// unscaled.
func (p Policy) Scale1() int {
	if p.Size.Scale <= 0 {
		return 1
	}
	return p.Size.Scale
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) >= 4 && string(data[:4]) == "\x89PNG" {
		return png.Decode(bytes.NewReader(data))
	}
	// treat anything else as SVG; oksvg tolerates the svgz-stripped form
	// only (spec scope excludes gzip-wrapped svgz parsing).
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode svg: %w", err)
	}
	w, hgt := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || hgt <= 0 {
		w, hgt = defaultIconSize, defaultIconSize
	}
	icon.SetTarget(0, 0, float64(w), float64(hgt))
	rgba := image.NewRGBA(image.Rect(0, 0, w, hgt))
	scanner := rasterx.NewScannerGV(w, hgt, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(w, hgt, scanner)
	icon.Draw(raster, 1.0)
	return rgba, nil
}
