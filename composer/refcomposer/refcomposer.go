// Package refcomposer is a minimal reference implementation of
// composer.Composer, sufficient to drive the desktop-application
// end-to-end scenarios in spec §8. It understands freedesktop .desktop
// entries and the fixed icon-theme locations spec §4.3 enumerates; it is
// not a validating MetaInfo parser and makes no attempt to handle every
// desktop-entry key.
package refcomposer

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/composer"
)

const desktopDir = "/usr/share/applications/"

// Composer derives one Component per .desktop entry found in a Unit.
type Composer struct{}

// New returns a ready-to-use reference composer. A fresh instance should
// be constructed per worker (spec §5); Composer holds no mutable state,
// so sharing one is harmless but not relied upon.
func New() *Composer { return &Composer{} }

func (c *Composer) Compose(unit composer.Unit) (composer.Result, error) {
	var res composer.Result
	err := unit.Walk(func(e composer.FileEntry) error {
		if e.IsSymlink || !strings.HasPrefix(e.Name, desktopDir) || !strings.HasSuffix(e.Name, ".desktop") {
			return nil
		}
		entry, err := parseDesktopEntry(e.Bytes)
		if err != nil {
			res.Hints = append(res.Hints, asgen.Hint{
				ComponentID: asgen.GeneralHintTarget,
				Tag:         "desktop-entry-malformed",
				Vars:        map[string]string{"file": e.Name},
			})
			return nil
		}
		if entry.noDisplay() {
			return nil
		}
		comp := c.buildComponent(e.Name, entry)
		icons, iconHints := resolveIcons(unit, comp.ComponentID, entry.icon())
		comp.Icons = icons
		res.Hints = append(res.Hints, iconHints...)
		res.Components = append(res.Components, comp)
		return nil
	})
	if err != nil {
		return composer.Result{}, err
	}
	return res, nil
}

func (c *Composer) buildComponent(desktopPath string, e desktopEntry) *asgen.Component {
	cid := e.appstreamID()
	if cid == "" {
		cid = path.Base(desktopPath)
	}
	comp := &asgen.Component{
		ComponentID: cid,
		Kind:        "desktop-application",
		Summary:     map[string]string{},
		Description: map[string]string{},
	}
	if name := e.fields["Name"]; name != "" {
		comp.Summary["C"] = name
	}
	if comment := e.fields["Comment"]; comment != "" {
		comp.Description["C"] = comment
	}
	comp.SetNormalized(normalize(comp))
	return comp
}

// normalize produces the deterministic byte sequence hashed into the
// component's gcid (spec §3, "normalized... Set once by the composer").
func normalize(c *asgen.Component) []byte {
	var b bytes.Buffer
	b.WriteString(c.ComponentID)
	b.WriteByte('\n')
	b.WriteString(c.Kind)
	b.WriteByte('\n')
	b.WriteString(c.Summary["C"])
	b.WriteByte('\n')
	b.WriteString(c.Description["C"])
	b.WriteByte('\n')
	return b.Bytes()
}

// NormalizedHash is a convenience used by backends that need a plain hex
// digest of a component's normalized form without depending on the core
// asgen.Digest type.
func NormalizedHash(c *asgen.Component) string {
	sum := sha256.Sum256(c.Normalized())
	return hex.EncodeToString(sum[:])
}

type desktopEntry struct {
	fields map[string]string
}

func (e desktopEntry) appstreamID() string { return e.fields["X-AppStream-ID"] }
func (e desktopEntry) icon() string        { return e.fields["Icon"] }
func (e desktopEntry) noDisplay() bool     { return e.fields["NoDisplay"] == "true" }

func parseDesktopEntry(b []byte) (desktopEntry, error) {
	fields := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(b))
	inMainGroup := false
	seenMainGroup := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inMainGroup = line == "[Desktop Entry]"
			if inMainGroup {
				seenMainGroup = true
			}
			continue
		}
		if !inMainGroup {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if !seenMainGroup {
		return desktopEntry{}, &asgen.Error{Kind: asgen.ErrInternal, Message: "missing [Desktop Entry] group"}
	}
	return desktopEntry{fields: fields}, nil
}

// resolveIcons searches the fixed hicolor theme locations spec §4.3
// names for each configured size, below the icon name the desktop entry
// declares. Sizes are hardcoded here (the real size/scale list is
// injected by iconhandler in the full pipeline); refcomposer only needs
// enough to drive the fresh-install scenario.
var refIconSizes = []string{"64x64", "128x128"}

func resolveIcons(unit composer.Unit, cid, iconName string) ([]asgen.Icon, []asgen.Hint) {
	if iconName == "" {
		return nil, []asgen.Hint{{ComponentID: cid, Tag: "icon-not-found"}}
	}
	var icons []asgen.Icon
	var hints []asgen.Hint
	found := false
	for _, size := range refIconSizes {
		for _, ext := range []string{".png", ".svg"} {
			p := "/usr/share/icons/hicolor/" + size + "/apps/" + iconName + ext
			data, err := unit.ReadFile(p)
			if err != nil || len(data) <= 1 {
				continue
			}
			found = true
			w, h := splitSize(size)
			icons = append(icons, asgen.Icon{
				Width: w, Height: h, Scale: 1,
				State:    asgen.IconCachedOnly,
				Filename: iconName + ext,
			})
		}
	}
	if !found {
		hints = append(hints, asgen.Hint{ComponentID: cid, Tag: "icon-not-found"})
	}
	sort.Slice(icons, func(i, j int) bool { return icons[i].Width < icons[j].Width })
	return icons, hints
}

func splitSize(s string) (int, int) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0
	}
	return atoiSafe(w), atoiSafe(h)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
