package asgen

import "fmt"

// PackageKind distinguishes ordinary distribution packages from the
// synthetic "+extra-metainfo" injection package (spec §3, §4.5 step 3).
type PackageKind string

const (
	// KindReal is an ordinary package enumerated by a backend.
	KindReal PackageKind = "real"
	// KindFake is the synthetic injection package wrapping a suite's
	// local MetaInfo overlay directory.
	KindFake PackageKind = "fake"
)

// GStreamerInfo carries the subset of GStreamer element capability
// information a package may claim to provide (spec §1, "GStreamer
// capabilities").
type GStreamerInfo struct {
	Decoders   []string
	Encoders   []string
	URISources []string
	URISinks   []string
	Elements   []string
}

// Empty reports whether no GStreamer capability was declared.
func (g GStreamerInfo) Empty() bool {
	return len(g.Decoders) == 0 && len(g.Encoders) == 0 &&
		len(g.URISources) == 0 && len(g.URISinks) == 0 && len(g.Elements) == 0
}

// DesktopTranslator lets a backend supply locale-aware translation of a
// desktop-entry key discovered by the composer (spec §9, "GObject-style
// callbacks ... become trait/interface capabilities").
type DesktopTranslator interface {
	// Translate returns a localized value for (key, locale), and whether
	// one was found.
	Translate(key, locale, untranslated string) (string, bool)
}

// Package is the opaque capability set the core needs from a package
// backend (spec §3). Package format parsing is out of scope for the core;
// every per-distribution backend supplies an implementation of this
// interface and nothing else.
type Package interface {
	// Name, Version, and Architecture together form the package-id.
	Name() string
	Version() string
	Architecture() string
	Kind() PackageKind

	// Contents returns the ordered sequence of absolute file paths inside
	// the package.
	Contents() []string
	// ReadFile returns the bytes stored at path. A returned slice of
	// length <= 1 means "absent" (spec §9): some composer implementations
	// treat a true-empty return as fatal, so a one-byte sentinel is used
	// instead and callers must check length, not emptiness.
	ReadFile(path string) ([]byte, error)

	// Descriptions returns the packaged long description per locale code.
	Descriptions() map[string]string
	// Maintainer returns the packaging maintainer string, or "".
	Maintainer() string

	// DesktopEntryTranslator optionally supplies translation support for
	// desktop-entry values. ok is false when unsupported.
	DesktopEntryTranslator() (t DesktopTranslator, ok bool)
	// GStreamer optionally supplies GStreamer capability info. ok is
	// false when the package makes no such claim.
	GStreamer() (info GStreamerInfo, ok bool)

	// Finish releases any temporary resources (open archive handles,
	// extracted scratch files). Called at most once, as soon as the
	// package is no longer needed.
	Finish() error
}

// PackageID returns the stable "name/version/arch" key used throughout the
// stores (spec glossary, "Package-id").
func PackageID(p Package) string {
	return FormatPackageID(p.Name(), p.Version(), p.Architecture())
}

// FormatPackageID builds a package-id from its three components without
// requiring a live Package value.
func FormatPackageID(name, version, arch string) string {
	return fmt.Sprintf("%s/%s/%s", name, version, arch)
}
