package contentsstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "contents.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGet(t *testing.T) {
	s := openTestStore(t)
	contents := []string{
		"/usr/bin/hello",
		"/usr/share/applications/hello.desktop",
		"/usr/share/icons/hicolor/64x64/apps/hello.png",
		"/usr/share/locale/de/LC_MESSAGES/hello.mo",
	}
	if err := s.Add("hello/1.2-3/amd64", contents); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ok, err := s.Exists("hello/1.2-3/amd64")
	if err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}

	got, err := s.GetContents("hello/1.2-3/amd64")
	if err != nil {
		t.Fatalf("GetContents: %v", err)
	}
	if diff := cmp.Diff(contents, got); diff != "" {
		t.Errorf("GetContents mismatch (-want +got):\n%s", diff)
	}

	icons, err := s.GetIcons("hello/1.2-3/amd64")
	if err != nil {
		t.Fatalf("GetIcons: %v", err)
	}
	want := []string{"/usr/share/icons/hicolor/64x64/apps/hello.png"}
	if diff := cmp.Diff(want, icons); diff != "" {
		t.Errorf("GetIcons mismatch (-want +got):\n%s", diff)
	}

	locale, err := s.GetLocale("hello/1.2-3/amd64")
	if err != nil {
		t.Fatalf("GetLocale: %v", err)
	}
	wantLocale := []string{"/usr/share/locale/de/LC_MESSAGES/hello.mo"}
	if diff := cmp.Diff(wantLocale, locale); diff != "" {
		t.Errorf("GetLocale mismatch (-want +got):\n%s", diff)
	}
}

func TestAddOverwrites(t *testing.T) {
	s := openTestStore(t)
	if err := s.Add("p/1/amd64", []string{"/usr/bin/a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("p/1/amd64", []string{"/usr/bin/b"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetContents("p/1/amd64")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/usr/bin/b"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExistsUnknown(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.Exists("missing/1/amd64")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected Exists to report false for an unrecorded package-id")
	}
}

func TestContentsMapLastWriterWins(t *testing.T) {
	s := openTestStore(t)
	if err := s.Add("a/1/amd64", []string{"/usr/share/doc/x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("b/1/amd64", []string{"/usr/share/doc/x"}); err != nil {
		t.Fatal(err)
	}
	m, err := s.ContentsMap([]string{"a/1/amd64", "b/1/amd64"})
	if err != nil {
		t.Fatal(err)
	}
	if got := m["/usr/share/doc/x"]; got != "b/1/amd64" {
		t.Errorf("expected last-iterated package-id to win, got %q", got)
	}
}

func TestLocaleMapKeyedByBasename(t *testing.T) {
	s := openTestStore(t)
	if err := s.Add("hello/1/amd64", []string{"/usr/share/locale/de/LC_MESSAGES/hello.mo"}); err != nil {
		t.Fatal(err)
	}
	m, err := s.LocaleMap([]string{"hello/1/amd64"})
	if err != nil {
		t.Fatal(err)
	}
	if got := m["hello.mo"]; got != "hello/1/amd64" {
		t.Errorf("expected basename key, got map %v", m)
	}
}

func TestRemoveAndPackageIDSet(t *testing.T) {
	s := openTestStore(t)
	if err := s.Add("a/1/amd64", []string{"/usr/bin/a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("b/1/amd64", []string{"/usr/bin/b"}); err != nil {
		t.Fatal(err)
	}
	ids, err := s.PackageIDSet()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a/1/amd64", "b/1/amd64"}, ids); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if err := s.Remove([]string{"a/1/amd64"}); err != nil {
		t.Fatal(err)
	}
	ids, err = s.PackageIDSet()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b/1/amd64"}, ids); diff != "" {
		t.Errorf("mismatch after remove (-want +got):\n%s", diff)
	}
}
