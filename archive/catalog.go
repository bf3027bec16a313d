package archive

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CatalogMeta carries the envelope fields shared by both serialization
// formats (spec §6, "Catalog envelope").
type CatalogMeta struct {
	FormatVersion   string
	Origin          string
	Priority        int
	HasPriority     bool
	MediaBaseURL    string
	Time            time.Time
	IncludeTime     bool
}

// WriteXML wraps pre-serialized component XML fragments in the
// "<components>" envelope spec §6 describes, writing deterministic
// attribute order.
func WriteXML(meta CatalogMeta, components []string) (string, error) {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<components version="`)
	xml.EscapeText(&b, []byte(meta.FormatVersion))
	b.WriteString(`" origin="`)
	xml.EscapeText(&b, []byte(meta.Origin))
	b.WriteString(`"`)
	if meta.HasPriority {
		fmt.Fprintf(&b, ` priority="%d"`, meta.Priority)
	}
	if meta.MediaBaseURL != "" {
		b.WriteString(` media_baseurl="`)
		xml.EscapeText(&b, []byte(meta.MediaBaseURL))
		b.WriteString(`"`)
	}
	if meta.IncludeTime {
		b.WriteString(` time="`)
		b.WriteString(meta.Time.UTC().Format(time.RFC3339))
		b.WriteString(`"`)
	}
	b.WriteString(">\n")
	for _, c := range components {
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("</components>\n")
	return b.String(), nil
}

// dep11Header is the DEP-11 YAML document header (spec §6).
type dep11Header struct {
	File         string `yaml:"File"`
	Version      string `yaml:"Version"`
	Origin       string `yaml:"Origin"`
	MediaBaseURL string `yaml:"MediaBaseUrl,omitempty"`
	Priority     int    `yaml:"Priority,omitempty"`
	Time         string `yaml:"Time,omitempty"`
}

// WriteYAML renders the DEP-11 header followed by "---"-delimited
// pre-serialized component YAML documents, in the order given (spec §6).
func WriteYAML(meta CatalogMeta, components []string) (string, error) {
	h := dep11Header{
		File:         "DEP-11",
		Version:      meta.FormatVersion,
		Origin:       meta.Origin,
		MediaBaseURL: meta.MediaBaseURL,
	}
	if meta.HasPriority {
		h.Priority = meta.Priority
	}
	if meta.IncludeTime {
		h.Time = meta.Time.UTC().Format(time.RFC3339)
	}
	hb, err := yaml.Marshal(h)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Write(hb)
	for _, c := range components {
		b.WriteString("---\n")
		b.WriteString(c)
		if !strings.HasSuffix(c, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// CIDIndexEntry is one row of the "CID-Index-<arch>.json.gz" side index
// (spec §6's on-disk layout) mapping a component-id to the gcid(s) that
// produced it in this section.
type CIDIndexEntry struct {
	ComponentID string   `json:"cid"`
	GCIDs       []string `json:"gcids"`
}

// SortedCIDIndex builds a deterministically ordered CID index from a
// gcid -> component-id map (spec §4.5, "deterministic ordering for the
// gcid→component-id index").
func SortedCIDIndex(gcidToComponentID map[string]string) []CIDIndexEntry {
	byCID := make(map[string][]string)
	for gcid, cid := range gcidToComponentID {
		byCID[cid] = append(byCID[cid], gcid)
	}
	cids := make([]string, 0, len(byCID))
	for cid := range byCID {
		cids = append(cids, cid)
	}
	sort.Strings(cids)
	out := make([]CIDIndexEntry, 0, len(cids))
	for _, cid := range cids {
		gcids := byCID[cid]
		sort.Strings(gcids)
		out = append(out, CIDIndexEntry{ComponentID: cid, GCIDs: gcids})
	}
	return out
}
