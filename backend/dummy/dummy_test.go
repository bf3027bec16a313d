package dummy

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPackage(t *testing.T, dir, name, version string, files map[string]string, sidecarJSON string) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for p, content := range files {
		hdr := &tar.Header{Name: p, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	base := name + "_" + version
	if err := os.WriteFile(filepath.Join(dir, base+".tar"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if sidecarJSON != "" {
		if err := os.WriteFile(filepath.Join(dir, base+".json"), []byte(sidecarJSON), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "noble", "main", "amd64")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPackage(t, dir, "hello", "1.2-3", map[string]string{
		"usr/share/applications/hello.desktop": "[Desktop Entry]",
	}, `{"maintainer":"dev@example.com","descriptions":{"C":"An app"}}`)

	ix := &Index{root: root}
	pkgs, err := ix.Enumerate(context.Background(), "noble", "main", "amd64", false)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pkgs))
	}
	p := pkgs[0]
	if p.Name() != "hello" || p.Version() != "1.2-3" || p.Architecture() != "amd64" {
		t.Errorf("unexpected identity: %s/%s/%s", p.Name(), p.Version(), p.Architecture())
	}
	if p.Maintainer() != "dev@example.com" {
		t.Errorf("Maintainer = %q", p.Maintainer())
	}
	if len(p.Contents()) != 1 {
		t.Errorf("Contents = %v", p.Contents())
	}
	data, err := p.ReadFile("/usr/share/applications/hello.desktop")
	if err != nil || string(data) != "[Desktop Entry]" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}

func TestEnumerateMissingDirReturnsEmpty(t *testing.T) {
	ix := &Index{root: t.TempDir()}
	pkgs, err := ix.Enumerate(context.Background(), "noble", "main", "amd64", false)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(pkgs) != 0 {
		t.Errorf("expected no packages, got %d", len(pkgs))
	}
}

func TestReadFileMissingPathReturnsSentinel(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "noble", "main", "amd64")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPackage(t, dir, "hello", "1.0", map[string]string{"a.txt": "x"}, "")
	ix := &Index{root: root}
	pkgs, err := ix.Enumerate(context.Background(), "noble", "main", "amd64", false)
	if err != nil {
		t.Fatal(err)
	}
	data, err := pkgs[0].ReadFile("/missing")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) > 1 {
		t.Errorf("expected sentinel for missing path, got %q", data)
	}
}

func TestPackageForMalformedName(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "nounderscore.tar")
	if err := os.WriteFile(bad, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ix := &Index{root: root}
	if _, err := ix.PackageFor(context.Background(), bad); err == nil {
		t.Error("expected error for malformed package filename")
	}
}
