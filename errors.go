// Package asgen provides the core data model for the batch metadata
// generator: packages, components, suites, hints, and the content-addressed
// global component id that ties catalog entries to the packages that
// produced them.
package asgen

import (
	"errors"
	"strings"
)

// Error is the asgen error domain type.
//
// Errors coming from asgen components should be inspectable as ([errors.As])
// an *Error at some point in the error chain. Implementers create an Error at
// the system boundary (a store transaction, a backend call, a file read) and
// intermediate layers wrap with "%w" rather than re-boxing in another Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is] by comparing error kind.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error { return e.Inner }

// ErrorKind classifies errors per the taxonomy in spec §7.
type ErrorKind string

// Error implements error.
func (k ErrorKind) Error() string { return string(k) }

// Defined error kinds.
const (
	// ErrConfig covers invalid JSON, unknown backend, forbidden suite
	// names, malformed icon policy keys. Fatal at startup.
	ErrConfig = ErrorKind("config")
	// ErrBackend covers unreadable archives, missing indexes, failed
	// subprocesses. The failing package is skipped, not the section.
	ErrBackend = ErrorKind("backend")
	// ErrStorage covers transaction aborts, map exhaustion, unexpected
	// missing keys. Fatal to the current unit, not the process.
	ErrStorage = ErrorKind("storage")
	// ErrInternal covers caught panics/unexpected failures converted to
	// per-component hints.
	ErrInternal = ErrorKind("internal")
)
