package archive

import (
	"encoding/json"
	"sort"

	"github.com/distrocat/asgen"
)

// HintRecord is one {tag, vars} entry inside a package's hints document
// (spec §6, "Hints JSON").
type HintRecord struct {
	Tag  string            `json:"tag"`
	Vars map[string]string `json:"vars,omitempty"`
}

// HintsDocument is one package's hints, the shape spec §6 describes for
// a section's hints file: {"package": pkid, "hints": {component-id:
// [{tag, vars}...]}}.
type HintsDocument struct {
	Package string                  `json:"package"`
	Hints   map[string][]HintRecord `json:"hints"`
}

// BuildHintsDocument converts one package's in-memory hint map, as
// produced by extractor.Extract, into the HintsDocument shape written
// to the section's hints file.
func BuildHintsDocument(pkid string, hints map[string][]asgen.Hint) HintsDocument {
	doc := HintsDocument{Package: pkid, Hints: make(map[string][]HintRecord, len(hints))}
	for cid, hs := range hints {
		recs := make([]HintRecord, 0, len(hs))
		for _, h := range hs {
			recs = append(recs, HintRecord{Tag: h.Tag, Vars: h.Vars})
		}
		doc.Hints[cid] = recs
	}
	return doc
}

// SerializeHints renders docs as the JSON array spec §6 describes for a
// section's "Hints-<arch>.json" file, sorted by package-id so repeated
// runs over unchanged input produce byte-identical output.
func SerializeHints(docs []HintsDocument) ([]byte, error) {
	sorted := make([]HintsDocument, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Package < sorted[j].Package })
	return json.Marshal(sorted)
}

// HintDefinitionRecord is one entry of the suite-wide "hint-definitions.json"
// file (spec §6).
type HintDefinitionRecord struct {
	Tag         string         `json:"tag"`
	Severity    asgen.Severity `json:"severity"`
	Explanation string         `json:"explanation"`
}

// SerializeHintDefinitions renders the process-wide hint registry as the
// JSON array written once per suite to "hint-definitions.json", sorted
// by tag for deterministic output.
func SerializeHintDefinitions(defs []asgen.HintDefinition) ([]byte, error) {
	recs := make([]HintDefinitionRecord, 0, len(defs))
	for _, d := range defs {
		recs = append(recs, HintDefinitionRecord{Tag: d.Tag, Severity: d.Severity, Explanation: d.Explanation})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Tag < recs[j].Tag })
	return json.Marshal(recs)
}
