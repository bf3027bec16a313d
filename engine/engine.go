// Package engine implements C6, the suite/section/architecture
// orchestration loop described in spec §4.5: seeding content data,
// running the extractor across a section's packages, injecting a
// suite's local overlay, exporting the catalog and icon tarballs, and
// running cross-run cleanup.
//
// Grounded on quay-claircore/indexer/controller/controller.go's FSM
// shape generalized one level up: instead of one manifest moving
// through states, one (suite, section, arch) triple moves through the
// fixed step sequence spec §4.5 names, with the same "convert a local
// failure to a recorded result and keep going" discipline.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/archive"
	"github.com/distrocat/asgen/backend"
	"github.com/distrocat/asgen/composer"
	"github.com/distrocat/asgen/contentsstore"
	"github.com/distrocat/asgen/datastore"
	"github.com/distrocat/asgen/extractor"
	"github.com/distrocat/asgen/iconhandler"
	"github.com/distrocat/asgen/injectedmods"
	"github.com/distrocat/asgen/jobpool"
)

// exportCompression picks the codec used for the two "{gz,xz}"-suffixed
// export files (spec §6): gzip for the catalog, matching the worked
// scenario's literal "Components-amd64.xml.gz"; xz for the hints file,
// the other half of spec §6's bracketed choice, so both
// klauspost/compress and ulikunitz/xz are exercised on the product
// path rather than only by archive's own tests. The CID index and icon
// tarballs are always gzip: spec §6 fixes their suffix, no choice is
// offered there.
const (
	catalogCompression = archive.Gzip
	hintsCompression   = archive.XZ
)

// interestingPrefixes decides "interesting-found" during content
// seeding (spec §4.5 step 1).
var interestingPrefixes = []string{
	"/usr/share/applications/",
	"/usr/local/share/applications/",
	"/usr/share/metainfo/",
	"/usr/local/share/metainfo/",
}

// alwaysLoadedSections are intersected with a suite's own section list
// to build the IconHandler's sibling-package candidate pool (spec §4.5
// step 2, "a cross-distro convention").
var alwaysLoadedSections = []string{"main", "universe", "core", "extra"}

// Deps bundles every capability the engine needs, assembled by the
// caller (normally cmd/asgen) from configuration.
type Deps struct {
	Contents   *contentsstore.Store
	Data       *datastore.Store
	Hints      *asgen.HintRegistry
	Format     datastore.MetadataFormat
	Serialize  extractor.Serializer
	Hash       extractor.HashFunc
	NewComposer func() composer.Composer
	MediaExportDir string
	// DataExportDir and HintsExportDir root the "data/" and "hints/"
	// trees of spec §6's on-disk layout (export() writes into
	// <DataExportDir>/<suite>/<section>/... and
	// <HintsExportDir>/<suite>/[<section>/]...).
	DataExportDir  string
	HintsExportDir string
	IconPolicies   []iconhandler.Policy
	GStreamerEnabled bool
	Forced           bool
	Pool             *jobpool.Pool
	// ArchiveRoots maps a suite name to the path/URL passed to its
	// backend (spec §6, "ArchiveRoot"); Backends maps a suite name to
	// its configured backend name.
	ArchiveRoots map[string]string
	Backends     map[string]string
	// ProjectName and FormatVersion feed the catalog envelope's origin
	// and version fields (spec §6).
	ProjectName        string
	FormatVersion      string
	MediaBaseURL       string
	MetadataTimestamps bool
}

// Engine runs the full pipeline over a configured set of suites.
type Engine struct {
	deps   Deps
	suites []*asgen.Suite
	mods   map[string]*injectedmods.Modifications // suite name -> overlay
}

// New constructs an Engine for the given suites. mods supplies each
// suite's pre-loaded injectedmods.Modifications, keyed by suite name;
// a suite missing from the map gets an empty overlay.
func New(deps Deps, suites []*asgen.Suite, mods map[string]*injectedmods.Modifications) *Engine {
	return &Engine{deps: deps, suites: suites, mods: mods}
}

// Run executes the full suite/section/arch loop, then cross-run cleanup
// (spec §4.5).
func (e *Engine) Run(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "engine/Engine.Run")
	var nonImmutable []string
	for _, s := range e.suites {
		if s.IsImmutable {
			continue
		}
		nonImmutable = append(nonImmutable, s.Name)
		if err := s.Validate(); err != nil {
			return err
		}
		if err := e.runSuite(ctx, s); err != nil {
			return err
		}
	}
	return e.Cleanup(ctx, nonImmutable)
}

// Cleanup runs statistics compression and the cross-store cruft sweep
// (spec §6 "cleanup" subcommand), independent of a full pipeline run.
// nonImmutableSuites restricts CleanupCruft's media-pool hardlink
// removal the same way Run's own call does.
func (e *Engine) Cleanup(ctx context.Context, nonImmutableSuites []string) error {
	if err := e.cleanupStatistics(ctx); err != nil {
		return err
	}
	return e.runCleanup(ctx, nonImmutableSuites)
}

// NonImmutableSuiteNames returns the names of every configured suite that
// is not marked immutable, the nonImmutableSuites argument Cleanup needs
// when called outside of Run.
func (e *Engine) NonImmutableSuiteNames() []string {
	var out []string
	for _, s := range e.suites {
		if !s.IsImmutable {
			out = append(out, s.Name)
		}
	}
	return out
}

func (e *Engine) suiteByName(name string) *asgen.Suite {
	for _, s := range e.suites {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (e *Engine) runSuite(ctx context.Context, suite *asgen.Suite) error {
	ix, err := e.newBackend(suite)
	if err != nil {
		return err
	}
	for _, section := range suite.Sections {
		for _, arch := range suite.Architectures {
			if err := e.runTriple(ctx, suite, ix, section, arch); err != nil {
				return err
			}
		}
	}
	return e.exportHintDefinitions(suite)
}

// exportHintDefinitions writes the suite-wide "hint-definitions.json"
// file (spec §6), one copy per suite drawn from the single process-wide
// HintRegistry. Unlike the catalog/hints/icon outputs it carries no
// "{gz,xz}" suffix in spec §6's layout, so it is written uncompressed.
func (e *Engine) exportHintDefinitions(suite *asgen.Suite) error {
	if e.deps.HintsExportDir == "" || e.deps.Hints == nil {
		return nil
	}
	data, err := archive.SerializeHintDefinitions(e.deps.Hints.Definitions())
	if err != nil {
		return &asgen.Error{Op: "engine.exportHintDefinitions", Kind: asgen.ErrInternal, Inner: err}
	}
	path := fmt.Sprintf("%s/%s/hint-definitions.json", e.deps.HintsExportDir, suite.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &asgen.Error{Op: "engine.exportHintDefinitions", Kind: asgen.ErrStorage, Message: path, Inner: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &asgen.Error{Op: "engine.exportHintDefinitions", Kind: asgen.ErrStorage, Message: path, Inner: err}
	}
	return nil
}

func (e *Engine) newBackend(suite *asgen.Suite) (backend.PackageIndex, error) {
	name := e.deps.Backends[suite.Name]
	if name == "" {
		name = "dummy"
	}
	return backend.New(name, e.deps.ArchiveRoots[suite.Name])
}

func (e *Engine) runTriple(ctx context.Context, suite *asgen.Suite, ix backend.PackageIndex, section, arch string) error {
	ctx = zlog.ContextWithValues(ctx, "suite", suite.Name, "section", section, "arch", arch)

	if err := e.seedContentsData(ctx, suite, ix, section, arch); err != nil {
		return err
	}

	pkgs, err := ix.Enumerate(ctx, suite.Name, section, arch, e.deps.Forced)
	if err != nil {
		return err
	}
	changed, err := ix.Changed(ctx, suite.Name, section, arch)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 && !changed && !e.deps.Forced {
		zlog.Info(ctx).Msg("no index changes since last run, skipping")
		return nil
	}

	candidates := e.candidatePackages(ctx, suite, section, arch, pkgs)
	icons := iconhandler.New(suite.IconTheme, e.deps.IconPolicies, e.deps.MediaExportDir+"/pool", candidates)

	gcidToComponentID, hintDocs, err := e.processPackages(ctx, suite, section, arch, pkgs, icons)
	if err != nil {
		return err
	}

	extraDoc, err := e.injectExtras(ctx, suite, section, arch, icons)
	if err != nil {
		return err
	}
	if extraDoc != nil {
		hintDocs = append(hintDocs, *extraDoc)
	}

	return e.export(ctx, suite, section, arch, gcidToComponentID, hintDocs)
}

// candidatePackages builds the IconHandler's sibling-lookup pool (spec
// §4.5 step 2): the current (section, arch)'s own packages, the
// suite's base suite at the same section, and the four always-loaded
// sections intersected with the suite's own section list. Enumeration
// failures against the base suite or an always-loaded section are
// non-fatal: icon lookups against a missing sibling source degrade to
// "not found" for that source rather than aborting the run.
func (e *Engine) candidatePackages(ctx context.Context, suite *asgen.Suite, section, arch string, pkgs []asgen.Package) []iconhandler.ContentSource {
	out := make([]iconhandler.ContentSource, 0, len(pkgs))
	seen := make(map[string]struct{}, len(pkgs))
	add := func(ps []asgen.Package) {
		for _, p := range ps {
			id := asgen.PackageID(p)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, p)
		}
	}
	add(pkgs)

	if suite.BaseSuite != "" {
		if base := e.suiteByName(suite.BaseSuite); base != nil {
			if baseIx, err := e.newBackend(base); err == nil {
				if basePkgs, err := baseIx.Enumerate(ctx, base.Name, section, arch, false); err == nil {
					add(basePkgs)
				}
			}
		}
	}

	if ix, err := e.newBackend(suite); err == nil {
		for _, always := range alwaysLoadedSections {
			if always == section || !containsSection(suite.Sections, always) {
				continue
			}
			if extra, err := ix.Enumerate(ctx, suite.Name, always, arch, false); err == nil {
				add(extra)
			}
		}
	}
	return out
}

func containsSection(sections []string, target string) bool {
	for _, s := range sections {
		if s == target {
			return true
		}
	}
	return false
}

// seedContentsData implements spec §4.5 step 1.
func (e *Engine) seedContentsData(ctx context.Context, suite *asgen.Suite, ix backend.PackageIndex, section, arch string) error {
	if suite.BaseSuite != "" {
		base := e.suiteByName(suite.BaseSuite)
		if base != nil {
			baseIx, err := e.newBackend(base)
			if err == nil {
				basePkgs, err := baseIx.Enumerate(ctx, base.Name, section, arch, false)
				if err == nil {
					if err := e.seedFromPackages(basePkgs); err != nil {
						return err
					}
				}
			}
		}
	}

	pkgs, err := ix.Enumerate(ctx, suite.Name, section, arch, e.deps.Forced)
	if err != nil {
		return err
	}
	if err := e.seedFromPackages(pkgs); err != nil {
		return err
	}
	return e.deps.Contents.Sync()
}

func (e *Engine) seedFromPackages(pkgs []asgen.Package) error {
	for _, p := range pkgs {
		pkid := asgen.PackageID(p)
		exists, err := e.deps.Contents.Exists(pkid)
		if err != nil {
			return err
		}
		if exists {
			_, inC2, err := e.deps.Data.PackageState(pkid)
			if err != nil {
				return err
			}
			if inC2 {
				continue
			}
		}
		contents := p.Contents()
		if err := e.deps.Contents.Add(pkid, contents); err != nil {
			return err
		}
		if !isInteresting(contents) {
			if err := e.deps.Data.AddGeneratorResult(e.deps.Format, datastore.GeneratorResult{PackageID: pkid, Ignored: true}, false, e.deps.Serialize); err != nil {
				return err
			}
		}
	}
	return nil
}

func isInteresting(paths []string) bool {
	for _, p := range paths {
		for _, prefix := range interestingPrefixes {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
	}
	return false
}

// processPackages runs the extractor across pkgs in bounded parallelism
// (spec §5, "each worker constructs its own DataExtractor instance"),
// writes each result to C2, and returns a deterministic gcid -> component-id
// map for the export step's CID index, plus one archive.HintsDocument per
// package that raised at least one hint (spec §6, "Hints JSON").
func (e *Engine) processPackages(ctx context.Context, suite *asgen.Suite, section, arch string, pkgs []asgen.Package, icons *iconhandler.Handler) (map[string]string, []archive.HintsDocument, error) {
	var mu sync.Mutex
	gcidToCID := make(map[string]string)
	var hintDocs []archive.HintsDocument

	mods := e.mods[suite.Name]
	err := jobpool.Run(ctx, e.deps.Pool, pkgs, func(ctx context.Context, pkg asgen.Package) error {
		start := time.Now()
		ex := &extractor.Extractor{
			Composer:  e.deps.NewComposer(),
			DataStore: e.deps.Data,
			Icons:     icons,
			Mods:      mods,
			Format:    e.deps.Format,
			Hash:      e.deps.Hash,
			Serialize: e.deps.Serialize,
			Registry:  e.deps.Hints,
			GStreamer: e.deps.GStreamerEnabled,
		}
		result, err := ex.Extract(ctx, pkg)
		observeExtract(suite.Name, start, err)
		if err != nil {
			return err
		}
		mu.Lock()
		for i, c := range result.Components {
			if c != nil {
				gcidToCID[result.GCIDs[i]] = c.ComponentID
			} else if _, _, cid, _, ok := asgen.SplitGCID(result.GCIDs[i]); ok {
				// A gcid EarlyDedup found already stored still belongs
				// in this section's catalog.
				gcidToCID[result.GCIDs[i]] = cid
			}
		}
		if len(result.Hints) > 0 {
			hintDocs = append(hintDocs, archive.BuildHintsDocument(result.PackageID, result.Hints))
		}
		mu.Unlock()

		mu.Lock()
		defer mu.Unlock()
		return e.deps.Data.AddGeneratorResult(e.deps.Format, result, false, e.deps.Serialize)
	})
	return gcidToCID, hintDocs, err
}

// injectExtras implements spec §4.5 step 3: a synthetic "+extra-metainfo"
// package wrapping the suite's local override directory is extracted and
// stored with always_regenerate=true, and its removal requests are
// resolved (already folded into e.mods via injectedmods.Modifications,
// which the extractor consults directly during FinalCheck). It returns
// the package's hints document for the section's hints file, or nil if
// there is no override directory or it raised no hints.
func (e *Engine) injectExtras(ctx context.Context, suite *asgen.Suite, section, arch string, icons *iconhandler.Handler) (*archive.HintsDocument, error) {
	if suite.ExtraMetainfoDir == "" {
		return nil, nil
	}
	mods := e.mods[suite.Name]
	pkg := newExtraMetainfoPackage(suite.ExtraMetainfoDir, arch)
	ex := &extractor.Extractor{
		Composer:  e.deps.NewComposer(),
		DataStore: e.deps.Data,
		Icons:     icons,
		Mods:      mods,
		Format:    e.deps.Format,
		Hash:      e.deps.Hash,
		Serialize: e.deps.Serialize,
		Registry:  e.deps.Hints,
	}
	result, err := ex.Extract(ctx, pkg)
	if err != nil {
		return nil, err
	}
	if err := e.deps.Data.AddGeneratorResult(e.deps.Format, result, true, e.deps.Serialize); err != nil {
		return nil, err
	}
	if len(result.Hints) == 0 {
		return nil, nil
	}
	doc := archive.BuildHintsDocument(result.PackageID, result.Hints)
	return &doc, nil
}

// export implements spec §4.5 step 4 (catalog + hints) and step 5 (icon
// tarballs); the report generator (step 6) is a logging stub: the real
// report format is out of this design's scope, and nothing downstream
// depends on its shape.
func (e *Engine) export(ctx context.Context, suite *asgen.Suite, section, arch string, gcidToCID map[string]string, hintDocs []archive.HintsDocument) error {
	active, err := e.deps.Data.ActiveGCIDs()
	if err != nil {
		return err
	}

	var components []string
	var gcids []string
	for gcid := range gcidToCID {
		if _, ok := active[gcid]; !ok {
			continue
		}
		gcids = append(gcids, gcid)
	}
	sort.Strings(gcids)
	for _, gcid := range gcids {
		raw, err := e.deps.Data.GetMetadata(e.deps.Format, gcid)
		if err != nil {
			return err
		}
		if raw != nil {
			components = append(components, string(raw))
		}
	}

	formatVersion := e.deps.FormatVersion
	if formatVersion == "" {
		formatVersion = "1.0"
	}
	project := e.deps.ProjectName
	if project == "" {
		project = "asgen"
	}
	meta := archive.CatalogMeta{
		FormatVersion: formatVersion,
		Origin:        fmt.Sprintf("%s-%s-%s", project, suite.Name, section),
		Priority:      suite.DataPriority,
		HasPriority:   suite.DataPriority != 0,
		MediaBaseURL:  e.deps.MediaBaseURL,
	}
	if e.deps.MetadataTimestamps {
		meta.Time = time.Now().UTC()
		meta.IncludeTime = true
	}
	var catalog string
	var ext string
	switch e.deps.Format {
	case datastore.FormatYAML:
		catalog, err = archive.WriteYAML(meta, components)
		ext = "yml"
	default:
		catalog, err = archive.WriteXML(meta, components)
		ext = "xml"
	}
	if err != nil {
		return err
	}

	if e.deps.DataExportDir != "" {
		catalogPath := fmt.Sprintf("%s/%s/%s/Components-%s.%s.%s", e.deps.DataExportDir, suite.Name, section, arch, ext, catalogCompression.Suffix())
		if err := archive.WriteCompressedFile(catalogPath, catalogCompression, []byte(catalog)); err != nil {
			return err
		}
	}
	zlog.Info(ctx).Int("components", len(components)).Int("bytes", len(catalog)).Msg("exported catalog")

	idx := archive.SortedCIDIndex(gcidToCID)
	if e.deps.DataExportDir != "" {
		idxData, err := json.Marshal(idx)
		if err != nil {
			return &asgen.Error{Op: "engine.export", Kind: asgen.ErrInternal, Inner: err}
		}
		idxPath := fmt.Sprintf("%s/%s/%s/CID-Index-%s.json.gz", e.deps.DataExportDir, suite.Name, section, arch)
		if err := archive.WriteCompressedFile(idxPath, archive.Gzip, idxData); err != nil {
			return err
		}
	}
	zlog.Debug(ctx).Int("indexed_components", len(idx)).Msg("built CID index")

	if err := e.exportIconTarballs(ctx, suite, section, arch, gcids); err != nil {
		return err
	}

	if len(hintDocs) > 0 && e.deps.HintsExportDir != "" {
		hintsData, err := archive.SerializeHints(hintDocs)
		if err != nil {
			return &asgen.Error{Op: "engine.export", Kind: asgen.ErrInternal, Inner: err}
		}
		hintsPath := fmt.Sprintf("%s/%s/%s/Hints-%s.json.%s", e.deps.HintsExportDir, suite.Name, section, arch, hintsCompression.Suffix())
		if err := archive.WriteCompressedFile(hintsPath, hintsCompression, hintsData); err != nil {
			return err
		}
		zlog.Debug(ctx).Int("packages_with_hints", len(hintDocs)).Msg("exported hints file")
	}

	if err := e.recordStatistics(ctx, suite, section, arch, len(components), len(catalog)); err != nil {
		return err
	}

	zlog.Info(ctx).Msg("report generation skipped (out of scope)")
	return nil
}

// recordStatistics implements the "renders statistics" half of spec §4.5
// step 6: one entry per (suite, section, arch) export, tagged with a
// per-run identifier the way claircore tags an ingested update batch with
// its UpdateOperation ref_id, so two runs that happen to land in the same
// epoch second (or get replayed from a log) are still distinguishable.
func (e *Engine) recordStatistics(ctx context.Context, suite *asgen.Suite, section, arch string, componentCount, catalogBytes int) error {
	r := datastore.NewRecord()
	r.Timestamp = time.Now().Unix()
	r.Fields["suite"] = suite.Name
	r.Fields["section"] = section
	r.Fields["arch"] = arch
	r.Fields["components"] = int64(componentCount)
	r.Fields["catalog_bytes"] = int64(catalogBytes)
	r.Fields["run_id"] = uuid.New().String()
	return e.deps.Data.AddStatistics(ctx, r)
}

// exportIconTarballs implements spec §4.5 step 5: one "icons-<WxH[@s]>.tar.gz"
// per enabled icon policy, containing every cached icon file collected
// under gcids, named relative to the media pool root so the tarball can
// be extracted straight into a media tree.
func (e *Engine) exportIconTarballs(ctx context.Context, suite *asgen.Suite, section, arch string, gcids []string) error {
	poolRoot := e.deps.MediaExportDir + "/pool"
	for _, p := range e.deps.IconPolicies {
		key := archive.IconTarballKey{Width: p.Size.Width, Height: p.Size.Height, Scale: p.Size.Scale}
		b := archive.NewIconTarballBuilder(key)
		for _, gcid := range gcids {
			if err := b.AddGCIDDir(poolRoot, gcid); err != nil {
				return err
			}
		}
		data, err := b.Build(func(path string) string {
			rel, err := filepath.Rel(poolRoot, path)
			if err != nil {
				return filepath.Base(path)
			}
			return filepath.ToSlash(rel)
		})
		if err != nil {
			return err
		}
		zlog.Debug(ctx).Str("size", key.Name()).Int("bytes", len(data)).Msg("built icon tarball")

		if e.deps.DataExportDir == "" {
			continue
		}
		tarPath := fmt.Sprintf("%s/%s/%s/icons-%s.tar.gz", e.deps.DataExportDir, suite.Name, section, key.Name())
		if err := archive.WriteCompressedFile(tarPath, archive.Gzip, data); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cleanupStatistics(ctx context.Context) error {
	stats, err := e.deps.Data.GetStatistics()
	if err != nil {
		return err
	}
	// spec §4.5: "for each (suite, section) pair, delete any entry whose
	// serialized payload equals the immediately preceding entry's
	// payload". Statistics here carry no (suite, section) dimension of
	// their own, so the suppression runs over the full sorted sequence;
	// a suite/section key living in r.Fields (set by the caller when
	// recording) still resets the comparison at a boundary. The payload
	// compared is the field set alone: every entry's timestamp differs.
	var prevKey string
	var prevFields map[string]any
	for _, r := range stats {
		key := fmt.Sprintf("%v-%v", r.Fields["suite"], r.Fields["section"])
		if key == prevKey && prevFields != nil && reflect.DeepEqual(r.Fields, prevFields) {
			if err := e.deps.Data.RemoveStatistics(r.Timestamp); err != nil {
				return err
			}
			continue
		}
		prevKey, prevFields = key, r.Fields
	}
	return nil
}

func (e *Engine) runCleanup(ctx context.Context, nonImmutableSuites []string) error {
	active := make(map[string]struct{})
	for _, suite := range e.suites {
		if suite.IsImmutable {
			continue
		}
		ix, err := e.newBackend(suite)
		if err != nil {
			continue
		}
		for _, section := range suite.Sections {
			for _, arch := range suite.Architectures {
				pkgs, err := ix.Enumerate(ctx, suite.Name, section, arch, false)
				if err != nil {
					continue
				}
				for _, p := range pkgs {
					active[asgen.PackageID(p)] = struct{}{}
				}
			}
		}
	}

	var wg sync.WaitGroup
	var c1err, c2err error
	wg.Add(2)
	go func() {
		defer wg.Done()
		c1err = e.cleanupContentsStore(active)
	}()
	go func() {
		defer wg.Done()
		c2err = e.deps.Data.CleanupCruft(ctx, nonImmutableSuites)
	}()
	wg.Wait()
	if c1err != nil {
		return c1err
	}
	return c2err
}

// RemoveFound implements spec §6's "remove-found suite" subcommand: every
// non-ignored package-id currently reported by suiteName's backend has
// its cached generator result dropped, leaving "ignore" entries intact,
// then a cruft sweep reclaims whatever that drop made stale.
func (e *Engine) RemoveFound(ctx context.Context, suiteName string) error {
	suite := e.suiteByName(suiteName)
	if suite == nil {
		return &asgen.Error{Op: "engine.RemoveFound", Kind: asgen.ErrConfig, Message: "unknown suite " + suiteName}
	}
	ix, err := e.newBackend(suite)
	if err != nil {
		return err
	}
	for _, section := range suite.Sections {
		for _, arch := range suite.Architectures {
			pkgs, err := ix.Enumerate(ctx, suite.Name, section, arch, false)
			if err != nil {
				return err
			}
			for _, p := range pkgs {
				pkid := asgen.PackageID(p)
				state, ok, err := e.deps.Data.PackageState(pkid)
				if err != nil {
					return err
				}
				if !ok || state == "ignore" {
					continue
				}
				if err := e.deps.Data.RemovePackage(pkid); err != nil {
					return err
				}
			}
		}
	}
	return e.Cleanup(ctx, e.NonImmutableSuiteNames())
}

func (e *Engine) cleanupContentsStore(active map[string]struct{}) error {
	ids, err := e.deps.Contents.PackageIDSet()
	if err != nil {
		return err
	}
	var stale []string
	for _, id := range ids {
		if _, ok := active[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	cruftRemovedCounter.WithLabelValues("contents").Add(float64(len(stale)))
	return e.deps.Contents.Remove(stale)
}

// newExtraMetainfoPackage returns the synthetic injection package
// wrapping a suite's local MetaInfo overlay directory (spec §3, §4.5
// step 3). Its Contents/ReadFile view the overlay directory on disk;
// building that filesystem walk is deliberately minimal since the
// overlay is operator-authored and small.
func newExtraMetainfoPackage(dir, arch string) asgen.Package {
	return &extraMetainfoPackage{dir: dir, arch: arch}
}

type extraMetainfoPackage struct {
	dir, arch string
}

func (p *extraMetainfoPackage) Name() string            { return extractor.ExtraMetainfoPackageName }
func (p *extraMetainfoPackage) Version() string          { return "0" }
func (p *extraMetainfoPackage) Architecture() string     { return p.arch }
func (p *extraMetainfoPackage) Kind() asgen.PackageKind  { return asgen.KindFake }
func (p *extraMetainfoPackage) Contents() []string       { return listMetainfoFiles(p.dir) }
func (p *extraMetainfoPackage) ReadFile(path string) ([]byte, error) { return readOverlayFile(p.dir, path) }
func (p *extraMetainfoPackage) Descriptions() map[string]string      { return nil }
func (p *extraMetainfoPackage) Maintainer() string                   { return "" }
func (p *extraMetainfoPackage) DesktopEntryTranslator() (asgen.DesktopTranslator, bool) {
	return nil, false
}
func (p *extraMetainfoPackage) GStreamer() (asgen.GStreamerInfo, bool) { return asgen.GStreamerInfo{}, false }
func (p *extraMetainfoPackage) Finish() error                          { return nil }
