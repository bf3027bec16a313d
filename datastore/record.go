package datastore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/distrocat/asgen"
)

// recordVersion is the only binary format version this package writes or
// accepts (spec §3).
const recordVersion byte = 1

// valueKind tags the wire type of one Record field.
type valueKind byte

const (
	kindInt64  valueKind = 1
	kindFloat64 valueKind = 2
	kindString valueKind = 3
)

// Record is the minimal typed binary format spec §3 defines for the
// statistics and repository sub-stores: a version byte, an optional
// timestamp, a count of key/value pairs, then the pairs themselves.
type Record struct {
	// Timestamp is non-zero for statistics entries (spec §3, "An optional
	// 8-byte timestamp follows for statistics entries"), zero for
	// repository entries.
	Timestamp int64
	Fields    map[string]any
}

// NewRecord returns an empty Record ready for field assignment.
func NewRecord() Record {
	return Record{Fields: make(map[string]any)}
}

// EncodeStatistics serializes r with its timestamp field present.
func EncodeStatistics(r Record) []byte { return encode(r, true) }

// EncodeRepository serializes r without a timestamp field.
func EncodeRepository(r Record) []byte { return encode(r, false) }

func encode(r Record, withTimestamp bool) []byte {
	buf := []byte{recordVersion}
	if withTimestamp {
		var ts [8]byte
		binary.LittleEndian.PutUint64(ts[:], uint64(r.Timestamp))
		buf = append(buf, ts[:]...)
	}

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(r.Fields)))
	buf = append(buf, count[:]...)

	for k, v := range r.Fields {
		buf = appendField(buf, k, v)
	}
	return buf
}

func appendField(buf []byte, key string, v any) []byte {
	var kl [2]byte
	binary.LittleEndian.PutUint16(kl[:], uint16(len(key)))
	buf = append(buf, kl[:]...)
	buf = append(buf, key...)

	switch val := v.(type) {
	case int64:
		buf = append(buf, byte(kindInt64))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(val))
		buf = append(buf, b[:]...)
	case float64:
		buf = append(buf, byte(kindFloat64))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(val))
		buf = append(buf, b[:]...)
	case string:
		buf = append(buf, byte(kindString))
		var sl [2]byte
		binary.LittleEndian.PutUint16(sl[:], uint16(len(val)))
		buf = append(buf, sl[:]...)
		buf = append(buf, val...)
	default:
		panic(fmt.Sprintf("datastore: unsupported field type %T", v))
	}
	return buf
}

// DecodeStatistics parses a statistics-sub-store value. Entries whose first
// byte indicates the legacy JSON format (an ASCII '{') are not this
// package's concern; callers identify and skip them before calling Decode
// (spec §4.2, "skipping entries whose first byte indicates the legacy JSON
// format").
func DecodeStatistics(b []byte) (Record, error) { return decode(b, true) }

// DecodeRepository parses a repository-sub-store value.
func DecodeRepository(b []byte) (Record, error) { return decode(b, false) }

// IsLegacyJSON reports whether b looks like the legacy JSON statistics
// format rather than this package's binary Record format.
func IsLegacyJSON(b []byte) bool { return len(b) > 0 && b[0] == '{' }

func decode(b []byte, withTimestamp bool) (Record, error) {
	r := NewRecord()
	if len(b) < 1 {
		return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "empty record"}
	}
	if b[0] != recordVersion {
		return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: fmt.Sprintf("unknown record version %d", b[0])}
	}
	i := 1
	if withTimestamp {
		if len(b) < i+8 {
			return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated timestamp"}
		}
		r.Timestamp = int64(binary.LittleEndian.Uint64(b[i : i+8]))
		i += 8
	}
	if len(b) < i+4 {
		return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated field count"}
	}
	count := binary.LittleEndian.Uint32(b[i : i+4])
	i += 4

	for n := uint32(0); n < count; n++ {
		if len(b) < i+2 {
			return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated key length"}
		}
		kl := int(binary.LittleEndian.Uint16(b[i : i+2]))
		i += 2
		if len(b) < i+kl+1 {
			return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated key/type"}
		}
		key := string(b[i : i+kl])
		i += kl
		kind := valueKind(b[i])
		i++

		switch kind {
		case kindInt64:
			if len(b) < i+8 {
				return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated int64 value"}
			}
			r.Fields[key] = int64(binary.LittleEndian.Uint64(b[i : i+8]))
			i += 8
		case kindFloat64:
			if len(b) < i+8 {
				return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated float64 value"}
			}
			r.Fields[key] = math.Float64frombits(binary.LittleEndian.Uint64(b[i : i+8]))
			i += 8
		case kindString:
			if len(b) < i+2 {
				return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated string length"}
			}
			sl := int(binary.LittleEndian.Uint16(b[i : i+2]))
			i += 2
			if len(b) < i+sl {
				return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: "truncated string value"}
			}
			r.Fields[key] = string(b[i : i+sl])
			i += sl
		default:
			return r, &asgen.Error{Op: "datastore.decode", Kind: asgen.ErrStorage, Message: fmt.Sprintf("unknown field type %d", kind)}
		}
	}
	return r, nil
}
