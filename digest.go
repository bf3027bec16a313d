package asgen

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// SHA256 identifies the only hash algorithm asgen produces digests with.
// Composers may report components normalized with other algorithms, but the
// gcid hash segment (spec §3) is always sha256.
const SHA256 = "sha256"

// Digest represents the hash of some data, kept independent of a specific
// algorithm so composer-supplied hashes and internally computed ones share
// one representation.
type Digest struct {
	algo     string
	checksum []byte
	repr     string
}

// Checksum returns the checksum byte slice.
func (d Digest) Checksum() []byte { return d.checksum }

// Algorithm returns the digest's algorithm name.
func (d Digest) Algorithm() string { return d.algo }

// Hash returns a fresh instance of the hashing algorithm used for this
// Digest.
func (d Digest) Hash() hash.Hash {
	switch d.algo {
	case SHA256:
		return sha256.New()
	default:
		panic("Hash() called on an invalid Digest")
	}
}

func (d Digest) String() string { return d.repr }

// MarshalText implements [encoding.TextMarshaler].
func (d Digest) MarshalText() ([]byte, error) {
	b := make([]byte, len(d.repr))
	copy(b, d.repr)
	return b, nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Digest) UnmarshalText(t []byte) error {
	i := bytes.IndexByte(t, ':')
	if i == -1 {
		return &DigestError{msg: "invalid digest format"}
	}
	d.algo = string(t[:i])
	t = t[i+1:]
	b := make([]byte, hex.DecodedLen(len(t)))
	if _, err := hex.Decode(b, t); err != nil {
		return &DigestError{msg: "unable to decode digest as hex", inner: err}
	}
	return d.setChecksum(b)
}

// DigestError is the concrete type backing errors returned from Digest's
// methods.
type DigestError struct {
	msg   string
	inner error
}

// Error implements error.
func (e *DigestError) Error() string { return e.msg }

// Unwrap enables [errors.Unwrap].
func (e *DigestError) Unwrap() error { return e.inner }

func (d *Digest) setChecksum(b []byte) error {
	var sz int
	switch d.algo {
	case SHA256:
		sz = sha256.Size
	default:
		return &DigestError{msg: fmt.Sprintf("unknown algorithm %q", d.algo)}
	}
	if l := len(b); l != sz {
		return &DigestError{msg: fmt.Sprintf("bad checksum length: %d", l)}
	}

	el := hex.EncodedLen(sz)
	hl := len(d.algo) + 1
	sb := make([]byte, hl+el)
	copy(sb, d.algo)
	sb[len(d.algo)] = ':'
	hex.Encode(sb[hl:], b)

	d.checksum = b
	d.repr = string(sb)
	return nil
}

// NewDigest constructs a Digest from a raw checksum.
func NewDigest(algo string, sum []byte) (Digest, error) {
	d := Digest{algo: algo}
	return d, d.setChecksum(sum)
}

// ParseDigest constructs a Digest from a string, ensuring it's well-formed.
func ParseDigest(digest string) (Digest, error) {
	d := Digest{}
	return d, d.UnmarshalText([]byte(digest))
}

// MustParseDigest works like ParseDigest but panics on malformed input.
func MustParseDigest(digest string) Digest {
	d := Digest{}
	if err := d.UnmarshalText([]byte(digest)); err != nil {
		panic(fmt.Sprintf("digest %s could not be parsed: %v", digest, err))
	}
	return d
}

// SumDigest hashes b with sha256 and returns the resulting Digest.
func SumDigest(b []byte) Digest {
	sum := sha256.Sum256(b)
	d, err := NewDigest(SHA256, sum[:])
	if err != nil {
		panic(err) // unreachable: sum is always the right size
	}
	return d
}
