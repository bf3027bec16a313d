// Package extractor implements C5, the per-package state machine spec
// §4.4 describes: Composing, EarlyDedup, IconStage, and FinalCheck,
// producing the datastore.GeneratorResult the engine hands to C2.
//
// Grounded on quay-claircore's layer-scanning pipeline shape
// (indexer/layerscanner.go's "scan one layer through a fixed sequence of
// stages, collect errors as you go, never abort the batch for one
// failure"): each stage here likewise converts a local failure into a
// hint and keeps going, with only composer-level failure aborting the
// whole package.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/quay/zlog"

	"github.com/distrocat/asgen"
	"github.com/distrocat/asgen/composer"
	"github.com/distrocat/asgen/datastore"
	"github.com/distrocat/asgen/iconhandler"
	"github.com/distrocat/asgen/injectedmods"
)

// ExtraMetainfoPackageName names the synthetic injection package exempt
// from EarlyDedup's duplicate checks (spec §4.4, §4.5 step 3).
const ExtraMetainfoPackageName = "+extra-metainfo"

// HashFunc computes a component's gcid hash segment from its normalized
// serialization. Kept injectable so the extractor does not depend on any
// one digest implementation.
type HashFunc func(normalized []byte) asgen.Digest

// Serializer renders a component into the bytes datastore.Store writes
// to its metadata bucket.
type Serializer func(*asgen.Component) ([]byte, error)

// Extractor runs the spec §4.4 state machine for one package. It is not
// safe for concurrent use: spec §5 requires "each worker constructs its
// own DataExtractor instance" because the wrapped composer is not
// thread-safe.
type Extractor struct {
	Composer   composer.Composer
	DataStore  *datastore.Store
	Icons      *iconhandler.Handler
	Mods       *injectedmods.Modifications
	Format     datastore.MetadataFormat
	Hash       HashFunc
	Serialize  Serializer
	Registry   *asgen.HintRegistry
	GStreamer  bool // feature flag, spec §4.4 "Emit GStreamer codec pseudo-components"
}

// packageUnit adapts an asgen.Package into a composer.Unit.
type packageUnit struct {
	pkg asgen.Package
}

func (u packageUnit) Walk(fn func(composer.FileEntry) error) error {
	for _, name := range u.pkg.Contents() {
		data, err := u.pkg.ReadFile(name)
		if err != nil {
			return err
		}
		if err := fn(composer.FileEntry{Name: name, Bytes: data}); err != nil {
			return err
		}
	}
	return nil
}

func (u packageUnit) ReadFile(path string) ([]byte, error) { return u.pkg.ReadFile(path) }

// Extract runs the full state machine for pkg and returns the
// GeneratorResult ready for datastore.Store.AddGeneratorResult. pkg's
// Finish is called exactly once before Extract returns, per spec §4.4.
func (e *Extractor) Extract(ctx context.Context, pkg asgen.Package) (datastore.GeneratorResult, error) {
	pkid := asgen.PackageID(pkg)
	defer pkg.Finish()

	ctx = zlog.ContextWithValues(ctx, "component", "extractor/Extract", "package", pkid)

	result := composer.Result{}
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = composer.Result{Hints: []asgen.Hint{{
					ComponentID: asgen.GeneralHintTarget,
					Tag:         "compose-failed",
					Vars:        map[string]string{"error": fmt.Sprint(r)},
				}}}
			}
		}()
		var err error
		result, err = e.Composer.Compose(packageUnit{pkg: pkg})
		if err != nil {
			zlog.Warn(ctx).Err(err).Msg("composer failed, package dropped")
			result = composer.Result{Hints: []asgen.Hint{{
				ComponentID: asgen.GeneralHintTarget,
				Tag:         "compose-failed",
				Vars:        map[string]string{"error": err.Error()},
			}}}
		}
	}()

	hints := make(map[string][]asgen.Hint)
	addHint := func(h asgen.Hint) { hints[h.ComponentID] = append(hints[h.ComponentID], h) }
	for _, h := range result.Hints {
		addHint(h)
	}

	exempt := pkg.Name() == ExtraMetainfoPackageName

	type live struct {
		component *asgen.Component
		gcid      string
	}
	var survivors []live
	var danglingGCIDs []string

	for _, c := range result.Components {
		gcid := asgen.BuildGCID(c.ComponentID, e.Hash(c.Normalized()))
		if !exempt {
			existing, err := e.DataStore.GetMetadata(e.Format, gcid)
			if err != nil {
				return datastore.GeneratorResult{}, err
			}
			if existing != nil {
				// Either way the component is already catalogued under
				// this gcid: keep the reference so packages[pkid] still
				// points at it, but never re-add the component itself.
				if !bytes.Contains(existing, []byte(pkid)) && c.Kind != "web-app" {
					addHint(asgen.Hint{ComponentID: c.ComponentID, Tag: "metainfo-duplicate-id"})
				}
				danglingGCIDs = append(danglingGCIDs, gcid)
				continue
			}
		}
		survivors = append(survivors, live{component: c, gcid: gcid})
	}

	own := pkg
	for _, s := range survivors {
		if s.component.MergeKind != asgen.MergeNone {
			continue
		}
		for _, h := range e.Icons.Resolve(s.component, own, s.gcid) {
			addHint(h)
		}
	}

	var final []live
	for _, s := range survivors {
		c := s.component
		if c.MergeKind != asgen.MergeRemoveComponent {
			// A real package's components are associated with the
			// package-id that produced them; EarlyDedup looks for this
			// token in stored metadata.
			if len(c.PackageNames) == 0 && !exempt {
				c.PackageNames = []string{pkid}
			}
			if len(c.PackageNames) == 0 && !isInstallExempt(c.Kind) {
				addHint(asgen.Hint{ComponentID: c.ComponentID, Tag: "no-install-candidate"})
			}
			c.PackageNames = stripExtraMetainfo(c.PackageNames)

			if isApplicationKind(c.Kind) && c.Description["C"] == "" {
				if desc := pkg.Descriptions()["C"]; desc != "" {
					c.Description["C"] = desc
					addHint(asgen.Hint{ComponentID: c.ComponentID, Tag: "description-from-package"})
				} else {
					addHint(asgen.Hint{ComponentID: c.ComponentID, Tag: "description-missing"})
				}
			}
		}

		if e.Mods != nil && !exempt {
			if !e.Mods.Apply(c) {
				continue
			}
		}
		final = append(final, s)
	}

	if e.GStreamer {
		if info, ok := pkg.GStreamer(); ok && !info.Empty() {
			for _, gc := range gstreamerPseudoComponents(pkid, info) {
				gcid := asgen.BuildGCID(gc.ComponentID, e.Hash(gc.Normalized()))
				final = append(final, live{component: gc, gcid: gcid})
			}
		}
	}

	gr := datastore.GeneratorResult{PackageID: pkid, Hints: hints}
	for _, s := range final {
		gr.Components = append(gr.Components, s.component)
		gr.GCIDs = append(gr.GCIDs, s.gcid)
	}
	// danglingGCIDs already have metadata recorded under this exact gcid
	// (EarlyDedup found it, whichever package wrote it), so AddGeneratorResult's MetadataExists
	// check short-circuits before it would ever dereference the nil
	// component placeholder paired with each one here.
	gr.GCIDs = append(gr.GCIDs, danglingGCIDs...)
	for range danglingGCIDs {
		gr.Components = append(gr.Components, nil)
	}
	if len(gr.Components) == 0 && len(hints) == 0 {
		gr.Ignored = true
	}
	return gr, nil
}

func isInstallExempt(kind string) bool {
	switch kind {
	case "web-app", "os", "repository":
		return true
	}
	return false
}

func isApplicationKind(kind string) bool {
	switch kind {
	case "desktop-application", "console-application", "web-app":
		return true
	}
	return false
}

func stripExtraMetainfo(names []string) []string {
	out := names[:0:0]
	for _, n := range names {
		if strings.HasPrefix(n, ExtraMetainfoPackageName+"/") {
			continue
		}
		out = append(out, n)
	}
	return out
}

// gstreamerPseudoComponents turns a package's declared GStreamer
// capabilities into one synthetic "codec" component per element kind
// (spec §4.4, "Emit GStreamer codec pseudo-components").
func gstreamerPseudoComponents(pkid string, info asgen.GStreamerInfo) []*asgen.Component {
	var out []*asgen.Component
	add := func(kind string, elements []string) {
		if len(elements) == 0 {
			return
		}
		c := &asgen.Component{
			ComponentID:  "gstreamer." + kind + "." + pkid,
			Kind:         "codec",
			PackageNames: []string{pkid},
			CustomFields: map[string]string{"gstreamer-kind": kind},
		}
		c.SetNormalized([]byte(c.ComponentID + "\n" + strings.Join(elements, ",")))
		out = append(out, c)
	}
	add("decoder", info.Decoders)
	add("encoder", info.Encoders)
	add("urisource", info.URISources)
	add("urisink", info.URISinks)
	add("element", info.Elements)
	return out
}
