package asgen

import "testing"

func TestHintRegistrySeverity(t *testing.T) {
	r := NewHintRegistry()
	r.Register("icon-too-small", SeverityWarning, "Icon {{name}} is too small.")

	tt := []struct {
		name string
		tag  string
		want Severity
	}{
		{"registered", "icon-too-small", SeverityWarning},
		{"unregistered defaults to error", "nonexistent-tag", SeverityError},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Severity(tc.tag); got != tc.want {
				t.Errorf("Severity(%q): got %v, want %v", tc.tag, got, tc.want)
			}
		})
	}
}

func TestHintRegistryExplain(t *testing.T) {
	r := NewHintRegistry()
	r.Register("metainfo-duplicate-id", SeverityInfo, "Component {{cid}} duplicates an existing entry.")

	h := Hint{ComponentID: "org.example.Hello.desktop", Tag: "metainfo-duplicate-id", Vars: map[string]string{"cid": "org.example.Hello.desktop"}}
	got := r.Explain(h)
	want := "Component org.example.Hello.desktop duplicates an existing entry."
	if got != want {
		t.Errorf("Explain: got %q, want %q", got, want)
	}
}

func TestHintRegistryExplainUnregistered(t *testing.T) {
	r := NewHintRegistry()
	got := r.Explain(Hint{Tag: "made-up"})
	if got == "" {
		t.Error("expected a non-empty placeholder explanation")
	}
}

func TestHintRegistryTagsSorted(t *testing.T) {
	r := NewHintRegistry()
	r.Register("zzz-tag", SeverityInfo, "")
	r.Register("aaa-tag", SeverityInfo, "")
	got := r.Tags()
	want := []string{"aaa-tag", "zzz-tag"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Tags(): got %v, want %v", got, want)
	}
}
