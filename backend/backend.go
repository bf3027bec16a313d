// Package backend defines the PackageIndex capability spec §1 and §3
// place out of scope for the core ("how to enumerate packages or read
// files from a .deb, .rpm, .apk... They are pluggable and only supply the
// PackageIndex/Package capability"), plus a small selection registry so
// the engine can look a named backend up from configuration (spec §6,
// "Backend: dummy|debian|ubuntu|arch|rpmmd|alpinelinux|freebsd|nix").
//
// Grounded on quay-claircore's scanner-registry pattern
// (indexer.EcosystemsToScanners / the "kind" string dispatch used
// throughout indexer/*): a small interface implemented per ecosystem,
// selected by name at startup, with per-kind construction left to each
// implementation rather than a shared constructor signature.
package backend

import (
	"context"

	"github.com/distrocat/asgen"
)

// PackageIndex enumerates the packages available for one
// (suite, section, architecture) triple (spec §2, "PackageIndex.enumerate").
type PackageIndex interface {
	// Enumerate lists every package in (suite, section, arch). forced
	// disables any "no changes since last run" shortcut the backend may
	// otherwise apply.
	Enumerate(ctx context.Context, suite, section, arch string, forced bool) ([]asgen.Package, error)

	// Changed reports whether the backend believes this triple has
	// changed since the last run, used by the engine to implement spec
	// §4.5 step 1's "no index changes since last run" skip.
	Changed(ctx context.Context, suite, section, arch string) (bool, error)

	// PackageFor resolves a single on-disk package file into a Package,
	// used by the "process-file" subcommand (spec §6).
	PackageFor(ctx context.Context, path string) (asgen.Package, error)
}

// Factory constructs a PackageIndex given the backend-specific archive
// root (spec §6, "ArchiveRoot: Path or URL passed to the backend").
type Factory func(archiveRoot string) (PackageIndex, error)

var registry = map[string]Factory{}

// Register adds a named backend factory to the process-wide registry.
// Called from each backend implementation's init function, mirroring
// claircore's scanner-registration idiom.
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs the named backend's PackageIndex. Returns an
// [asgen.ErrConfig] error for an unknown name (spec §6, "unknown backend"
// is a configuration error per spec §7).
func New(name, archiveRoot string) (PackageIndex, error) {
	f, ok := registry[name]
	if !ok {
		return nil, &asgen.Error{Op: "backend.New", Kind: asgen.ErrConfig, Message: "unknown backend " + name}
	}
	return f(archiveRoot)
}

// Known returns the set of currently registered backend names, used by
// configuration validation to produce a helpful error message.
func Known() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
