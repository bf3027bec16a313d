// Package datastore implements C2, the main metadata store described in
// spec §4.2: package-id state, serialized component metadata keyed by
// gcid, per-package hints, statistics, and repository info, plus the
// cruft-collection sweep that keeps the media pool coherent. Like
// [github.com/distrocat/asgen/contentsstore], it is backed by bbolt so
// that the single-writer/snapshot-reader policy in spec §5 falls out of
// bbolt's own transaction model rather than a hand-rolled lock.
package datastore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/quay/zlog"
	"go.etcd.io/bbolt"

	"github.com/distrocat/asgen"
)

var (
	bucketPackages     = []byte("packages")
	bucketMetadataXML  = []byte("metadata_xml")
	bucketMetadataYAML = []byte("metadata_yaml")
	bucketHints        = []byte("hints")
	bucketStatistics   = []byte("statistics")
	bucketRepository   = []byte("repository")
)

var allBuckets = [][]byte{
	bucketPackages, bucketMetadataXML, bucketMetadataYAML,
	bucketHints, bucketStatistics, bucketRepository,
}

// Package-state sentinel values stored under bucketPackages (spec §3).
const (
	stateIgnore = "ignore"
	stateSeen   = "seen"
)

// MetadataFormat selects which of metadata_xml/metadata_yaml is populated
// for a run, per spec §3 ("only one of the two is populated per run,
// chosen by configuration").
type MetadataFormat int

const (
	FormatXML MetadataFormat = iota
	FormatYAML
)

func (f MetadataFormat) bucket() []byte {
	if f == FormatYAML {
		return bucketMetadataYAML
	}
	return bucketMetadataXML
}

// Store is the bbolt-backed implementation of DataStore (spec §4.2).
type Store struct {
	db        *bbolt.DB
	mediaRoot string
}

// Open creates or opens the data store at path. mediaRoot is the export
// directory cruft collection walks (spec §4.2, "Walk the media pool").
func Open(ctx context.Context, path, mediaRoot string) (*Store, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/Open")
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, &asgen.Error{Op: "datastore.Open", Kind: asgen.ErrStorage, Message: "opening database", Inner: err}
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &asgen.Error{Op: "datastore.Open", Kind: asgen.ErrStorage, Message: "creating buckets", Inner: err}
	}
	zlog.Debug(ctx).Str("path", path).Msg("data store opened")
	return &Store{db: db, mediaRoot: mediaRoot}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// GeneratorResult bundles one package's extraction output, the unit C2's
// write path consumes (spec §4.2, "add_generator_result").
type GeneratorResult struct {
	PackageID  string
	Components []*asgen.Component
	GCIDs      []string // parallel to Components
	Hints      map[string][]asgen.Hint
	// Ignored marks a result with no components and no hints, distinct
	// from a result that simply produced neither gcids nor hints for some
	// other reason.
	Ignored bool
}

// MetadataExists reports whether component metadata for gcid is already
// recorded for format.
func (s *Store) MetadataExists(format MetadataFormat, gcid string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(format.bucket()).Get([]byte(gcid)) != nil
		return nil
	})
	if err != nil {
		return false, &asgen.Error{Op: "datastore.MetadataExists", Kind: asgen.ErrStorage, Inner: err}
	}
	return ok, nil
}

// SetMetadata writes the serialized component record for gcid.
func (s *Store) SetMetadata(format MetadataFormat, gcid string, serialized []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(format.bucket()).Put([]byte(gcid), serialized)
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.SetMetadata", Kind: asgen.ErrStorage, Message: gcid, Inner: err}
	}
	return nil
}

// GetMetadata returns the serialized component record for gcid, or nil if
// absent.
func (s *Store) GetMetadata(format MetadataFormat, gcid string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(format.bucket()).Get([]byte(gcid)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, &asgen.Error{Op: "datastore.GetMetadata", Kind: asgen.ErrStorage, Inner: err}
	}
	return out, nil
}

// hintsDocument is the on-disk shape of one package's hints JSON (spec
// §6, "Hints JSON").
type hintsDocument struct {
	Package string                  `json:"package"`
	Hints   map[string][]hintRecord `json:"hints"`
}

type hintRecord struct {
	Tag  string            `json:"tag"`
	Vars map[string]string `json:"vars,omitempty"`
}

// SetHints writes h as pkid's hints document.
func (s *Store) SetHints(pkid string, h map[string][]asgen.Hint) error {
	doc := hintsDocument{Package: pkid, Hints: make(map[string][]hintRecord, len(h))}
	for cid, hints := range h {
		recs := make([]hintRecord, 0, len(hints))
		for _, hint := range hints {
			recs = append(recs, hintRecord{Tag: hint.Tag, Vars: hint.Vars})
		}
		doc.Hints[cid] = recs
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return &asgen.Error{Op: "datastore.SetHints", Kind: asgen.ErrInternal, Message: pkid, Inner: err}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHints).Put([]byte(pkid), b)
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.SetHints", Kind: asgen.ErrStorage, Message: pkid, Inner: err}
	}
	return nil
}

// GetHints returns the decoded hints document for pkid, or nil if none.
func (s *Store) GetHints(pkid string) (map[string][]asgen.Hint, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketHints).Get([]byte(pkid)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, &asgen.Error{Op: "datastore.GetHints", Kind: asgen.ErrStorage, Inner: err}
	}
	if raw == nil {
		return nil, nil
	}
	var doc hintsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &asgen.Error{Op: "datastore.GetHints", Kind: asgen.ErrInternal, Message: pkid, Inner: err}
	}
	out := make(map[string][]asgen.Hint, len(doc.Hints))
	for cid, recs := range doc.Hints {
		hints := make([]asgen.Hint, 0, len(recs))
		for _, r := range recs {
			hints = append(hints, asgen.Hint{ComponentID: cid, Tag: r.Tag, Vars: r.Vars})
		}
		out[cid] = hints
	}
	return out, nil
}

// HasHints reports whether pkid has a stored hints document.
func (s *Store) HasHints(pkid string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketHints).Get([]byte(pkid)) != nil
		return nil
	})
	if err != nil {
		return false, &asgen.Error{Op: "datastore.HasHints", Kind: asgen.ErrStorage, Inner: err}
	}
	return ok, nil
}

// AddGeneratorResult is the central write path described in spec §4.2.
// serialize is called once per not-yet-existing gcid (unless
// alwaysRegenerate) to produce the bytes written to the metadata bucket;
// a serialize failure becomes a per-component hint instead of aborting the
// whole result.
func (s *Store) AddGeneratorResult(format MetadataFormat, r GeneratorResult, alwaysRegenerate bool, serialize func(*asgen.Component) ([]byte, error)) error {
	if r.Ignored {
		return s.setPackageState(r.PackageID, stateIgnore)
	}

	hintCount := 0
	for _, hs := range r.Hints {
		hintCount += len(hs)
	}

	var liveGCIDs []string
	for i, c := range r.Components {
		gcid := r.GCIDs[i]
		exists, err := s.MetadataExists(format, gcid)
		if err != nil {
			return err
		}
		if exists && !alwaysRegenerate {
			liveGCIDs = append(liveGCIDs, gcid)
			continue
		}
		b, err := serialize(c)
		if err != nil {
			if r.Hints == nil {
				r.Hints = make(map[string][]asgen.Hint)
			}
			r.Hints[c.ComponentID] = append(r.Hints[c.ComponentID], asgen.Hint{
				ComponentID: c.ComponentID,
				Tag:         "metainfo-serialize-failed",
				Vars:        map[string]string{"error": err.Error()},
			})
			hintCount++
			continue
		}
		if err := s.SetMetadata(format, gcid, b); err != nil {
			return err
		}
		liveGCIDs = append(liveGCIDs, gcid)
	}

	if hintCount > 0 {
		if err := s.SetHints(r.PackageID, r.Hints); err != nil {
			return err
		}
	}

	if len(liveGCIDs) == 0 {
		if hintCount > 0 {
			return s.setPackageState(r.PackageID, stateSeen)
		}
		return s.setPackageState(r.PackageID, stateIgnore)
	}
	return s.setPackageState(r.PackageID, strings.Join(liveGCIDs, "\n"))
}

func (s *Store) setPackageState(pkid, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPackages).Put([]byte(pkid), []byte(value))
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.setPackageState", Kind: asgen.ErrStorage, Message: pkid, Inner: err}
	}
	return nil
}

// PackageState returns the raw value stored for pkid: "ignore", "seen", or
// a newline-joined gcid list.
func (s *Store) PackageState(pkid string) (string, bool, error) {
	var v []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucketPackages).Get([]byte(pkid)); raw != nil {
			v = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return "", false, &asgen.Error{Op: "datastore.PackageState", Kind: asgen.ErrStorage, Inner: err}
	}
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

// RemovePackage drops pkid's packages and hints entries; its gcids remain
// referenced elsewhere until CleanupCruft runs (spec §4.2).
func (s *Store) RemovePackage(pkid string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketPackages).Delete([]byte(pkid)); err != nil {
			return err
		}
		return tx.Bucket(bucketHints).Delete([]byte(pkid))
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.RemovePackage", Kind: asgen.ErrStorage, Message: pkid, Inner: err}
	}
	return nil
}

// ActiveGCIDs scans the packages bucket and unions every referenced gcid.
func (s *Store) ActiveGCIDs() (map[string]struct{}, error) {
	active := make(map[string]struct{})
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPackages).ForEach(func(_, v []byte) error {
			val := string(v)
			if val == stateIgnore || val == stateSeen || val == "" {
				return nil
			}
			for _, gcid := range strings.Split(val, "\n") {
				active[gcid] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, &asgen.Error{Op: "datastore.ActiveGCIDs", Kind: asgen.ErrStorage, Inner: err}
	}
	return active, nil
}

// PkidsMatching returns every package-id that equals prefix or starts
// with "prefix + /" (spec §4.2, a partial match on leading
// name/version/arch segments), sorted.
func (s *Store) PkidsMatching(prefix string) ([]string, error) {
	var out []string
	full := prefix + "/"
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPackages).ForEach(func(k, _ []byte) error {
			key := string(k)
			if key == prefix || strings.HasPrefix(key, full) {
				out = append(out, key)
			}
			return nil
		})
	})
	if err != nil {
		return nil, &asgen.Error{Op: "datastore.PkidsMatching", Kind: asgen.ErrStorage, Inner: err}
	}
	sort.Strings(out)
	return out, nil
}

// AddStatistics writes a statistics entry keyed by epoch-second timestamp.
// A colliding timestamp is overwritten, with a warning logged (spec §4.2).
func (s *Store) AddStatistics(ctx context.Context, r Record) error {
	key := []byte(strconv.FormatInt(r.Timestamp, 10))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStatistics)
		if b.Get(key) != nil {
			zlog.Warn(ctx).Int64("timestamp", r.Timestamp).Msg("overwriting existing statistics entry")
		}
		return b.Put(key, EncodeStatistics(r))
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.AddStatistics", Kind: asgen.ErrStorage, Inner: err}
	}
	return nil
}

// RemoveStatistics deletes the entry at epoch-second timestamp t.
func (s *Store) RemoveStatistics(t int64) error {
	key := []byte(strconv.FormatInt(t, 10))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStatistics).Delete(key)
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.RemoveStatistics", Kind: asgen.ErrStorage, Inner: err}
	}
	return nil
}

// GetStatistics decodes every statistics entry, skipping legacy-JSON
// entries (spec §4.2), ordered by ascending timestamp.
func (s *Store) GetStatistics() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStatistics).ForEach(func(_, v []byte) error {
			if IsLegacyJSON(v) {
				return nil
			}
			r, err := DecodeStatistics(v)
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, &asgen.Error{Op: "datastore.GetStatistics", Kind: asgen.ErrStorage, Inner: err}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// SetRepository writes repo info for one (suite, section, arch) triple.
func (s *Store) SetRepository(suite, section, arch string, r Record) error {
	key := []byte(asgen.RepoKey(suite, section, arch))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRepository).Put(key, EncodeRepository(r))
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.SetRepository", Kind: asgen.ErrStorage, Inner: err}
	}
	return nil
}

// GetRepository returns repo info for one (suite, section, arch) triple.
func (s *Store) GetRepository(suite, section, arch string) (Record, bool, error) {
	key := []byte(asgen.RepoKey(suite, section, arch))
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketRepository).Get(key); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Record{}, false, &asgen.Error{Op: "datastore.GetRepository", Kind: asgen.ErrStorage, Inner: err}
	}
	if raw == nil {
		return Record{}, false, nil
	}
	r, err := DecodeRepository(raw)
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

// CleanupCruft drops every metadata entry and media-pool directory for a
// gcid no longer referenced by any package (spec §4.2). suites lists every
// non-immutable suite name, whose hardlink roots are removed alongside the
// pool directory.
func (s *Store) CleanupCruft(ctx context.Context, nonImmutableSuites []string) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/Store.CleanupCruft")
	active, err := s.ActiveGCIDs()
	if err != nil {
		return err
	}

	var removed int
	err = s.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketMetadataXML, bucketMetadataYAML} {
			b := tx.Bucket(bucket)
			var stale [][]byte
			if err := b.ForEach(func(k, _ []byte) error {
				if _, ok := active[string(k)]; !ok {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			}); err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return &asgen.Error{Op: "datastore.CleanupCruft", Kind: asgen.ErrStorage, Inner: err}
	}
	zlog.Info(ctx).Int("removed_metadata_entries", removed).Msg("metadata cruft swept")

	if s.mediaRoot == "" {
		return nil
	}
	return s.sweepMediaPool(ctx, active, nonImmutableSuites)
}

// sweepMediaPool walks <mediaRoot>/pool and removes any gcid directory
// (tld/second-level/component-id/hash, four segments below pool) not in
// active, then its per-suite hardlink roots, then any now-empty
// intermediate directories up to two levels above the gcid dir.
func (s *Store) sweepMediaPool(ctx context.Context, active map[string]struct{}, nonImmutableSuites []string) error {
	poolRoot := filepath.Join(s.mediaRoot, "pool")
	entries, err := listGCIDDirs(poolRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &asgen.Error{Op: "datastore.sweepMediaPool", Kind: asgen.ErrStorage, Inner: err}
	}

	for _, gcid := range entries {
		if _, ok := active[gcid]; ok {
			continue
		}
		dir := filepath.Join(poolRoot, filepath.FromSlash(gcid))
		if err := os.RemoveAll(dir); err != nil {
			return &asgen.Error{Op: "datastore.sweepMediaPool", Kind: asgen.ErrStorage, Message: dir, Inner: err}
		}
		for _, suite := range nonImmutableSuites {
			hardlinkDir := filepath.Join(s.mediaRoot, suite, filepath.FromSlash(gcid))
			if err := os.RemoveAll(hardlinkDir); err != nil && !os.IsNotExist(err) {
				return &asgen.Error{Op: "datastore.sweepMediaPool", Kind: asgen.ErrStorage, Message: hardlinkDir, Inner: err}
			}
		}
		removeEmptyAncestors(filepath.Dir(dir), poolRoot, 2)
		zlog.Debug(ctx).Str("gcid", gcid).Msg("removed cruft media directory")
	}
	return nil
}

// listGCIDDirs returns every gcid string (tld/second/cid/hash) whose
// directory exists four path components below root.
func listGCIDDirs(root string) ([]string, error) {
	var out []string
	tlds, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, tld := range tlds {
		if !tld.IsDir() {
			continue
		}
		seconds, err := os.ReadDir(filepath.Join(root, tld.Name()))
		if err != nil {
			continue
		}
		for _, second := range seconds {
			if !second.IsDir() {
				continue
			}
			cids, err := os.ReadDir(filepath.Join(root, tld.Name(), second.Name()))
			if err != nil {
				continue
			}
			for _, cid := range cids {
				if !cid.IsDir() {
					continue
				}
				hashes, err := os.ReadDir(filepath.Join(root, tld.Name(), second.Name(), cid.Name()))
				if err != nil {
					continue
				}
				for _, hash := range hashes {
					if !hash.IsDir() {
						continue
					}
					out = append(out, strings.Join([]string{tld.Name(), second.Name(), cid.Name(), hash.Name()}, "/"))
				}
			}
		}
	}
	return out, nil
}

// removeEmptyAncestors removes dir and up to levels-1 further ancestors,
// stopping at stopAt or the first non-empty directory.
func removeEmptyAncestors(dir, stopAt string, levels int) {
	for i := 0; i < levels && dir != stopAt && dir != "." && dir != "/"; i++ {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
