// Package composer defines the black-box transformer boundary spec §1
// places out of scope: "The downstream composer library that parses
// desktop entries, renders icons, validates MetaInfo, and produces the
// final component objects. We treat it as a black-box transformer from a
// 'unit' (a filesystem view) to a 'result' (components + hints)."
package composer

import "github.com/distrocat/asgen"

// FileEntry is one item yielded while walking a Unit (spec §9, "Generators
// over archive contents... pull iterators with well-defined item shape
// {name, bytes | symlink-target}").
type FileEntry struct {
	Name         string
	Bytes        []byte
	SymlinkTarget string
	IsSymlink    bool
}

// Unit is the read-only filesystem view handed to a Composer: either one
// package (a PackageUnit) or a synthetic view covering every locale file
// in a (suite, section, arch) triple (a LocaleUnit), per spec §2's data
// flow diagram.
type Unit interface {
	// Walk calls fn once per file in the unit. fn returning an error
	// stops the walk and that error is returned from Walk. Walk must be
	// restartable: the same Unit may be walked more than once
	// (spec §9).
	Walk(fn func(FileEntry) error) error
	// ReadFile returns the bytes at path within the unit, or a <= 1 byte
	// sentinel slice if absent (spec §9, "Lazy file contents").
	ReadFile(path string) ([]byte, error)
}

// Result is the composer's output for one Unit: the components it
// produced plus any issue hints raised along the way (spec §1).
type Result struct {
	Components []*asgen.Component
	Hints      []asgen.Hint
}

// Composer is the black-box capability the core invokes per package
// (spec §4.4, "Composing... hand it to the composer"). Implementations
// are not required to be safe for concurrent use by multiple callers;
// spec §5 requires each worker to construct its own instance.
type Composer interface {
	Compose(unit Unit) (Result, error)
}
