package archive

import (
	"strings"
	"testing"

	"github.com/distrocat/asgen"
)

func sampleComponent() *asgen.Component {
	return &asgen.Component{
		ComponentID: "org.example.Foo",
		Kind:        "desktop-application",
		Summary: map[string]string{
			"C":  "A foo",
			"de": "Ein Foo",
		},
		Description: map[string]string{
			"C": "Does foo things.",
		},
		PackageNames: []string{"foo-bin", "foo-common"},
		Icons: []asgen.Icon{
			{Width: 64, Height: 64, RemoteRef: "abc123/icons/64x64/org.example.Foo.png"},
			{Width: 128, Height: 128, Filename: "org.example.Foo.png"},
		},
		CustomFields: map[string]string{
			"X-Flatpak":   "org.example.Foo",
			"X-AppCenter": "true",
		},
	}
}

func TestSerializeComponentXMLDeterministic(t *testing.T) {
	c := sampleComponent()
	a, err := SerializeComponentXML(c)
	if err != nil {
		t.Fatalf("SerializeComponentXML: %v", err)
	}
	b, err := SerializeComponentXML(c)
	if err != nil {
		t.Fatalf("SerializeComponentXML: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("SerializeComponentXML is not deterministic across repeated calls")
	}

	out := string(a)
	if !strings.HasPrefix(out, `<component type="desktop-application">`) {
		t.Errorf("unexpected prefix: %s", out)
	}
	if !strings.Contains(out, "<id>org.example.Foo</id>") {
		t.Errorf("missing id element: %s", out)
	}
	// German summary carries an xml:lang attribute, the default "C" locale doesn't.
	if !strings.Contains(out, `<summary xml:lang="de">Ein Foo</summary>`) {
		t.Errorf("missing localized summary: %s", out)
	}
	if !strings.Contains(out, "<summary>A foo</summary>") {
		t.Errorf("missing default-locale summary: %s", out)
	}
	// pkgname entries sorted alphabetically.
	if strings.Index(out, "foo-bin") > strings.Index(out, "foo-common") {
		t.Errorf("pkgname entries not sorted: %s", out)
	}
	if !strings.Contains(out, `width="64"`) || !strings.Contains(out, `height="64"`) {
		t.Errorf("missing icon dimensions: %s", out)
	}
	// icon falls back to Filename when RemoteRef is empty.
	if !strings.Contains(out, "org.example.Foo.png</icon>") {
		t.Errorf("missing icon fallback to Filename: %s", out)
	}
	// custom fields sorted by key: X-AppCenter before X-Flatpak.
	if strings.Index(out, "X-AppCenter") > strings.Index(out, "X-Flatpak") {
		t.Errorf("custom fields not sorted: %s", out)
	}
	if !strings.HasSuffix(out, "</component>") {
		t.Errorf("missing closing tag: %s", out)
	}
}

func TestSerializeComponentXMLEscapesSpecialCharacters(t *testing.T) {
	c := &asgen.Component{
		ComponentID: "org.example.Amp",
		Kind:        "generic",
		Summary:     map[string]string{"C": "Tom & Jerry <show>"},
	}
	out, err := SerializeComponentXML(c)
	if err != nil {
		t.Fatalf("SerializeComponentXML: %v", err)
	}
	if strings.Contains(string(out), "&amp;") == false {
		t.Errorf("expected ampersand to be escaped: %s", out)
	}
	if strings.Contains(string(out), "<show>") {
		t.Errorf("expected angle brackets to be escaped: %s", out)
	}
}

func TestSerializeComponentXMLOmitsEmptyBlocks(t *testing.T) {
	c := &asgen.Component{ComponentID: "org.example.Bare", Kind: "generic"}
	out, err := SerializeComponentXML(c)
	if err != nil {
		t.Fatalf("SerializeComponentXML: %v", err)
	}
	s := string(out)
	for _, tag := range []string{"<summary", "<description", "<pkgname", "<icons", "<custom"} {
		if strings.Contains(s, tag) {
			t.Errorf("expected no %s element for a component with no such data, got: %s", tag, s)
		}
	}
}

func TestSerializeComponentYAML(t *testing.T) {
	c := sampleComponent()
	out, err := SerializeComponentYAML(c)
	if err != nil {
		t.Fatalf("SerializeComponentYAML: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "Type: desktop-application") {
		t.Errorf("missing Type field: %s", s)
	}
	if !strings.Contains(s, "ID: org.example.Foo") {
		t.Errorf("missing ID field: %s", s)
	}
	if !strings.Contains(s, "foo-bin") || !strings.Contains(s, "foo-common") {
		t.Errorf("missing pkgname entries: %s", s)
	}
	if !strings.Contains(s, "width: 64") {
		t.Errorf("missing icon width: %s", s)
	}
}

func TestSerializeComponentYAMLOmitsEmptyMaps(t *testing.T) {
	c := &asgen.Component{ComponentID: "org.example.Bare", Kind: "generic"}
	out, err := SerializeComponentYAML(c)
	if err != nil {
		t.Fatalf("SerializeComponentYAML: %v", err)
	}
	s := string(out)
	for _, field := range []string{"Summary:", "Description:", "Pkgname:", "Icon:", "X-CustomFields:"} {
		if strings.Contains(s, field) {
			t.Errorf("expected omitted empty field %s, got: %s", field, s)
		}
	}
}
