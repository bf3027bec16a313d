package asgen

import "fmt"

// Suite describes one distribution suite: a named grouping of sections and
// architectures sharing a data priority and icon theme (spec §3).
type Suite struct {
	Name         string
	DataPriority int
	BaseSuite    string
	IconTheme    string
	Sections     []string
	Architectures []string
	// ExtraMetainfoDir is the suite-local overlay directory consumed by
	// InjectedModifications (C4), or "" when the suite has none.
	ExtraMetainfoDir string
	IsImmutable      bool
}

// ReservedSuiteName is the one suite name forbidden by spec §3 because it
// collides with the media pool's own top-level "pool" directory.
const ReservedSuiteName = "pool"

// Validate checks the invariants spec §3 and §6 place on a Suite
// definition.
func (s Suite) Validate() error {
	if s.Name == "" {
		return &Error{Op: "Suite.Validate", Kind: ErrConfig, Message: "suite name must not be empty"}
	}
	if s.Name == ReservedSuiteName {
		return &Error{Op: "Suite.Validate", Kind: ErrConfig, Message: fmt.Sprintf("suite must not be named %q", ReservedSuiteName)}
	}
	if len(s.Sections) == 0 {
		return &Error{Op: "Suite.Validate", Kind: ErrConfig, Message: fmt.Sprintf("suite %q has no sections", s.Name)}
	}
	if len(s.Architectures) == 0 {
		return &Error{Op: "Suite.Validate", Kind: ErrConfig, Message: fmt.Sprintf("suite %q has no architectures", s.Name)}
	}
	return nil
}

// RepoKey returns the DataStore "repository" sub-store key for one
// (suite, section, arch) triple (spec §3).
func RepoKey(suite, section, arch string) string {
	return fmt.Sprintf("%s-%s-%s", suite, section, arch)
}
