package asgen

import "strings"

// unknownIDSegment is substituted for a missing reverse-DNS segment of a
// component-id when building a gcid, so that component-ids without at
// least two dot-separated segments still bucket predictably under the
// media pool instead of colliding at its root.
const unknownIDSegment = "unknown"

// BuildGCID constructs the content-addressed global component id described
// in spec §3: "{tld}/{second-level}/{component-id}/{hash}". componentID is
// expected to be reverse-DNS shaped (e.g. "org.example.Hello.desktop");
// hash is the composer's digest of the component's normalized
// serialization.
func BuildGCID(componentID string, hash Digest) string {
	tld, second := splitIDPrefix(componentID)
	return strings.Join([]string{tld, second, componentID, hash.String()}, "/")
}

// splitIDPrefix extracts the top-level and second-level reverse-DNS
// segments from a component-id, falling back to unknownIDSegment for
// whichever segments are absent.
func splitIDPrefix(componentID string) (tld, second string) {
	parts := strings.Split(componentID, ".")
	tld, second = unknownIDSegment, unknownIDSegment
	if len(parts) > 0 && parts[0] != "" {
		tld = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		second = parts[1]
	}
	return tld, second
}

// SplitGCID decomposes a gcid back into its tld, second-level, component-id
// and hash segments. It returns ok=false if s is not shaped like a gcid.
func SplitGCID(s string) (tld, second, componentID, hash string, ok bool) {
	parts := strings.SplitN(s, "/", 4)
	if len(parts) != 4 {
		return "", "", "", "", false
	}
	return parts[0], parts[1], parts[2], parts[3], true
}

// MediaPoolPath returns the on-disk directory for a gcid's cached assets,
// relative to a media export root: "pool/<gcid>" (spec §3).
func MediaPoolPath(gcid string) string {
	return "pool/" + gcid
}

// SuiteMediaPath returns the per-suite hardlink directory for a gcid, used
// when a suite's IsImmutable flag is set (spec §3): "<suite>/<gcid>".
func SuiteMediaPath(suite, gcid string) string {
	return suite + "/" + gcid
}
