package archive

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/distrocat/asgen"
)

// SerializeComponentXML renders one component as the XML fragment
// WriteXML wraps inside "<components>...</components>" (spec §6). Map
// fields (Summary, Description, CustomFields) are written in sorted key
// order so the output is deterministic run to run.
func SerializeComponentXML(c *asgen.Component) ([]byte, error) {
	var b strings.Builder
	b.WriteString(`<component type="`)
	xml.EscapeText(&b, []byte(c.Kind))
	b.WriteString("\">\n  <id>")
	xml.EscapeText(&b, []byte(c.ComponentID))
	b.WriteString("</id>\n")

	writeLocalized(&b, "summary", c.Summary)
	writeLocalized(&b, "description", c.Description)

	if len(c.PackageNames) > 0 {
		names := append([]string(nil), c.PackageNames...)
		sort.Strings(names)
		for _, n := range names {
			b.WriteString("  <pkgname>")
			xml.EscapeText(&b, []byte(n))
			b.WriteString("</pkgname>\n")
		}
	}

	if len(c.Icons) > 0 {
		b.WriteString("  <icons>\n")
		for _, icon := range c.Icons {
			ref := icon.RemoteRef
			if ref == "" {
				ref = icon.Filename
			}
			b.WriteString("    <icon")
			if icon.Width > 0 {
				b.WriteString(` width="`)
				b.WriteString(strconv.Itoa(icon.Width))
				b.WriteString(`"`)
			}
			if icon.Height > 0 {
				b.WriteString(` height="`)
				b.WriteString(strconv.Itoa(icon.Height))
				b.WriteString(`"`)
			}
			b.WriteString(">")
			xml.EscapeText(&b, []byte(ref))
			b.WriteString("</icon>\n")
		}
		b.WriteString("  </icons>\n")
	}

	if len(c.CustomFields) > 0 {
		keys := make([]string, 0, len(c.CustomFields))
		for k := range c.CustomFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("  <custom>\n")
		for _, k := range keys {
			b.WriteString(`    <value key="`)
			xml.EscapeText(&b, []byte(k))
			b.WriteString(`">`)
			xml.EscapeText(&b, []byte(c.CustomFields[k]))
			b.WriteString("</value>\n")
		}
		b.WriteString("  </custom>\n")
	}

	b.WriteString("</component>")
	return []byte(b.String()), nil
}

func writeLocalized(b *strings.Builder, tag string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	langs := make([]string, 0, len(m))
	for l := range m {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	b.WriteString("  <" + tag + ">\n")
	for _, lang := range langs {
		b.WriteString("    <" + tag)
		if lang != "" && lang != "C" {
			b.WriteString(` xml:lang="`)
			xml.EscapeText(b, []byte(lang))
			b.WriteString(`"`)
		}
		b.WriteString(">")
		xml.EscapeText(b, []byte(m[lang]))
		b.WriteString("</" + tag + ">\n")
	}
	b.WriteString("  </" + tag + ">\n")
}

// yamlIcon/yamlComponent mirror the DEP-11 per-component document shape
// this module emits (spec §6, "YAML: DEP-11 header... followed by
// ---'-delimited component documents").
type yamlIcon struct {
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Name   string `yaml:"name"`
}

type yamlComponent struct {
	Type         string            `yaml:"Type"`
	ID           string            `yaml:"ID"`
	Summary      map[string]string `yaml:"Summary,omitempty"`
	Description  map[string]string `yaml:"Description,omitempty"`
	Pkgname      []string          `yaml:"Pkgname,omitempty"`
	Icons        []yamlIcon        `yaml:"Icon,omitempty"`
	CustomFields map[string]string `yaml:"X-CustomFields,omitempty"`
}

// SerializeComponentYAML renders one component as a DEP-11 YAML
// document, the per-component fragment WriteYAML concatenates between
// "---" separators.
func SerializeComponentYAML(c *asgen.Component) ([]byte, error) {
	yc := yamlComponent{
		Type:         c.Kind,
		ID:           c.ComponentID,
		Summary:      c.Summary,
		Description:  c.Description,
		Pkgname:      c.PackageNames,
		CustomFields: c.CustomFields,
	}
	for _, icon := range c.Icons {
		ref := icon.RemoteRef
		if ref == "" {
			ref = icon.Filename
		}
		yc.Icons = append(yc.Icons, yamlIcon{Width: icon.Width, Height: icon.Height, Name: ref})
	}
	return yaml.Marshal(yc)
}
