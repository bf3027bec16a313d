// Package injectedmods implements C4, the per-suite overlay of explicit
// operator-authored changes spec §3/§4.5 step 3 layers on top of
// generated metadata: extra MetaInfo files to merge in, custom field
// injections, and explicit component removal requests.
package injectedmods

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/distrocat/asgen"
)

// overrideFile is the on-disk shape of "<extraMetainfoDir>/overrides.json",
// the hand-authored overlay a suite operator maintains alongside any
// injected .metainfo.xml files (spec §4.5 step 3, "add explicit removal
// requests from C4 to the result").
type overrideFile struct {
	// Remove lists component-ids to drop from the output catalog outright.
	Remove []string `json:"remove,omitempty"`
	// CustomFields merges the given key/value pairs onto the named
	// component, in addition to whatever the composer produced.
	CustomFields map[string]map[string]string `json:"custom_fields,omitempty"`
}

// Modifications is the parsed, read-only-after-construction overlay for
// one suite.
type Modifications struct {
	removed      map[string]struct{}
	customFields map[string]map[string]string
}

// Load reads "<dir>/overrides.json" if present. A missing file is not an
// error: suites without local overrides simply get an empty overlay.
func Load(dir string) (*Modifications, error) {
	m := &Modifications{
		removed:      map[string]struct{}{},
		customFields: map[string]map[string]string{},
	}
	if dir == "" {
		return m, nil
	}
	b, err := os.ReadFile(filepath.Join(dir, "overrides.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, &asgen.Error{Op: "injectedmods.Load", Kind: asgen.ErrConfig, Inner: err}
	}
	var f overrideFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, &asgen.Error{Op: "injectedmods.Load", Kind: asgen.ErrConfig, Message: "malformed overrides.json", Inner: err}
	}
	for _, cid := range f.Remove {
		m.removed[cid] = struct{}{}
	}
	m.customFields = f.CustomFields
	return m, nil
}

// IsRemoved reports whether componentID is in this suite's removal set
// (spec §4.4 FinalCheck, "drop components whose id is in the removal set").
func (m *Modifications) IsRemoved(componentID string) bool {
	_, ok := m.removed[componentID]
	return ok
}

// Apply merges injected custom key/value pairs onto c, and reports
// whether c should be dropped entirely (spec §4.4 FinalCheck, "merge in
// any injected custom key/value pairs").
func (m *Modifications) Apply(c *asgen.Component) (keep bool) {
	if m.IsRemoved(c.ComponentID) {
		return false
	}
	fields := m.customFields[c.ComponentID]
	if len(fields) == 0 {
		return true
	}
	if c.CustomFields == nil {
		c.CustomFields = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		c.CustomFields[k] = v
	}
	return true
}

// RemovedComponentIDs returns the full removal set. The engine does not
// call it: removals take effect only through Apply, which drops matching
// components from ordinary packages, and no MergeRemoveComponent entries
// are added to the "+extra-metainfo" result or the catalog.
func (m *Modifications) RemovedComponentIDs() []string {
	out := make([]string, 0, len(m.removed))
	for cid := range m.removed {
		out = append(out, cid)
	}
	return out
}
