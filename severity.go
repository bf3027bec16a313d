package asgen

import "fmt"

// Severity classifies a Hint per spec §7.
//
//	error     removes the component from the output
//	warning   keeps the component, surfaces the issue
//	info      keeps the component, informational only
//	pedantic  discarded entirely, never reaches the hints file
type Severity uint

const (
	SeverityUnknown Severity = iota
	SeverityPedantic
	SeverityInfo
	SeverityWarning
	SeverityError
)

var severityName = [...]string{
	SeverityUnknown:  "unknown",
	SeverityPedantic: "pedantic",
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityError:    "error",
}

// String implements [fmt.Stringer].
func (s Severity) String() string {
	if int(s) >= len(severityName) {
		return "unknown"
	}
	return severityName[s]
}

// MarshalText implements [encoding.TextMarshaler].
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *Severity) UnmarshalText(b []byte) error {
	for i, n := range severityName {
		if n == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}

// RemovesComponent reports whether a Hint of this severity should cause the
// owning component to be dropped from catalog output.
func (s Severity) RemovesComponent() bool { return s == SeverityError }

// Discard reports whether a Hint of this severity is dropped entirely rather
// than recorded.
func (s Severity) Discard() bool { return s == SeverityPedantic }
