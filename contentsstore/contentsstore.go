// Package contentsstore implements C1, the durable package-id → file
// listing index described in spec §4.1. It is backed by a single bbolt
// database file so that reads run under bbolt's native MVCC snapshot
// isolation and writes are serialized behind bbolt's single-writer
// transaction, matching the "single writer mutex, snapshot-isolated
// readers" concurrency policy spec §5 requires of the contents index.
package contentsstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quay/zlog"
	"go.etcd.io/bbolt"

	"github.com/distrocat/asgen"
)

var (
	bucketContents = []byte("contents")
	bucketIcons    = []byte("icons")
	bucketLocale   = []byte("locale")
)

// Store is the bbolt-backed implementation of ContentsStore (spec §4.1).
// The zero value is not usable; use [Open].
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the contents database at path, idempotently
// creating the three sub-stores (contents/icons/locale) spec §4.1 requires.
// bbolt maps the whole file into the process address space, so writes
// never block on a map-size grow the way a fixed-arena store would.
func Open(ctx context.Context, path string) (*Store, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "contentsstore/Open")
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, &asgen.Error{Op: "contentsstore.Open", Kind: asgen.ErrStorage, Message: "opening database", Inner: err}
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketContents, bucketIcons, bucketLocale} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &asgen.Error{Op: "contentsstore.Open", Kind: asgen.ErrStorage, Message: "creating buckets", Inner: err}
	}
	zlog.Debug(ctx).Str("path", path).Msg("contents store opened")
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Sync forces a flush of any pending writes to disk.
func (s *Store) Sync() error { return s.db.Sync() }

func isIconPath(p string) bool {
	return strings.HasPrefix(p, "/usr/share/icons/") || strings.HasPrefix(p, "/usr/share/pixmaps/")
}

func isLocalePath(p string) bool {
	return strings.HasSuffix(p, ".mo") || strings.HasSuffix(p, ".qm")
}

// Add writes contents for pkgID in one atomic transaction, deriving and
// overwriting the icons and locale subsets (spec §4.1, "add"). A later Add
// for the same key overwrites all three sub-stores.
func (s *Store) Add(pkgID string, contents []string) error {
	var icons, locale []string
	for _, p := range contents {
		if isIconPath(p) {
			icons = append(icons, p)
		}
		if isLocalePath(p) {
			locale = append(locale, p)
		}
	}
	key := []byte(pkgID)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketContents).Put(key, []byte(strings.Join(contents, "\n"))); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIcons).Put(key, []byte(strings.Join(icons, "\n"))); err != nil {
			return err
		}
		return tx.Bucket(bucketLocale).Put(key, []byte(strings.Join(locale, "\n")))
	})
	if err != nil {
		return &asgen.Error{Op: "contentsstore.Add", Kind: asgen.ErrStorage, Message: fmt.Sprintf("package %s", pkgID), Inner: err}
	}
	return nil
}

// Exists reports whether pkgID has ever had contents recorded (spec §3,
// "presence in contents is the authoritative signal this package-id has
// been scanned").
func (s *Store) Exists(pkgID string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketContents).Get([]byte(pkgID)) != nil
		return nil
	})
	if err != nil {
		return false, &asgen.Error{Op: "contentsstore.Exists", Kind: asgen.ErrStorage, Inner: err}
	}
	return ok, nil
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	return strings.Split(string(b), "\n")
}

// GetContents returns the full file listing for pkgID.
func (s *Store) GetContents(pkgID string) ([]string, error) {
	return s.getList(bucketContents, pkgID)
}

// GetIcons returns the icon-path subset for pkgID.
func (s *Store) GetIcons(pkgID string) ([]string, error) {
	return s.getList(bucketIcons, pkgID)
}

// GetLocale returns the locale-file subset for pkgID.
func (s *Store) GetLocale(pkgID string) ([]string, error) {
	return s.getList(bucketLocale, pkgID)
}

func (s *Store) getList(bucket []byte, pkgID string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		out = splitLines(tx.Bucket(bucket).Get([]byte(pkgID)))
		return nil
	})
	if err != nil {
		return nil, &asgen.Error{Op: "contentsstore.getList", Kind: asgen.ErrStorage, Inner: err}
	}
	return out, nil
}

// ContentsMap builds a path → package-id index over pkgIDs (spec §4.1,
// "contents_map"). When multiple package-ids claim the same path, the
// last one iterated (in pkgIDs order) wins.
func (s *Store) ContentsMap(pkgIDs []string) (map[string]string, error) {
	return s.buildMap(bucketContents, pkgIDs)
}

// IconFilesMap is the icons-bucket analogue of ContentsMap.
func (s *Store) IconFilesMap(pkgIDs []string) (map[string]string, error) {
	return s.buildMap(bucketIcons, pkgIDs)
}

// LocaleMap is the locale-bucket analogue of ContentsMap, keyed by the
// basename of each locale file rather than its full path (spec §4.1,
// "assuming one domain lives in a single package").
func (s *Store) LocaleMap(pkgIDs []string) (map[string]string, error) {
	m, err := s.buildMap(bucketLocale, pkgIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for p, pkgID := range m {
		out[filepath.Base(p)] = pkgID
	}
	return out, nil
}

func (s *Store) buildMap(bucket []byte, pkgIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		for _, id := range pkgIDs {
			for _, p := range splitLines(b.Get([]byte(id))) {
				if p == "" {
					continue
				}
				out[p] = id
			}
		}
		return nil
	})
	if err != nil {
		return nil, &asgen.Error{Op: "contentsstore.buildMap", Kind: asgen.ErrStorage, Inner: err}
	}
	return out, nil
}

// Remove deletes the contents/icons/locale entries for every package-id in
// ids, in one transaction.
func (s *Store) Remove(ids []string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			key := []byte(id)
			for _, b := range [][]byte{bucketContents, bucketIcons, bucketLocale} {
				if err := tx.Bucket(b).Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return &asgen.Error{Op: "contentsstore.Remove", Kind: asgen.ErrStorage, Inner: err}
	}
	return nil
}

// PackageIDSet returns every package-id with a contents entry, sorted for
// deterministic iteration.
func (s *Store) PackageIDSet() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketContents).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, &asgen.Error{Op: "contentsstore.PackageIDSet", Kind: asgen.ErrStorage, Inner: err}
	}
	sort.Strings(out)
	return out, nil
}
