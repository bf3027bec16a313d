package asgen

// MergeKind describes how a Component should be combined with any
// existing catalog entry sharing its component-id (spec §3).
type MergeKind string

const (
	// MergeNone is an ordinary, independent component.
	MergeNone MergeKind = "none"
	// MergeReplaceComponent overwrites an existing catalog entry wholesale,
	// used by the +extra-metainfo overlay (spec §4.3).
	MergeReplaceComponent MergeKind = "replace-component"
	// MergeRemoveComponent marks the component-id for removal from the
	// output catalog, driven by an InjectedModifications removal request.
	MergeRemoveComponent MergeKind = "remove-component"
)

// IconState classifies how an Icon was satisfied (spec §4.3).
type IconState string

const (
	IconCachedOnly   IconState = "cached-only"
	IconRemoteOnly   IconState = "remote-only"
	IconCachedRemote IconState = "cached-remote"
	IconIgnored      IconState = "ignored"
)

// Icon is one resolved icon reference recorded on a Component (spec §4.3).
// Width/Height/Scale identify the requested size; RemoteRef, when non-empty,
// is the "<gcid>/icons/<size>/<name>" reference written into the catalog
// entry; CachedPath, when non-empty, is the on-disk media-pool path the
// file was written to.
type Icon struct {
	Width, Height int
	Scale         int
	State         IconState
	Filename      string
	RemoteRef     string
	CachedPath    string
}

// Component is the in-memory record produced by the composer for one
// application, font, codec, or other cataloged entity (spec §3).
//
// Apart from the GStreamer codec pseudo-components, the core does not
// construct Components itself; it reads ComponentID/MergeKind/Icons to
// drive deduplication, icon placement, and overlay application, and
// writes back Icons, PackageNames, a packaging Description, and injected
// CustomFields as those steps complete.
type Component struct {
	ComponentID string
	Kind        string

	Summary     map[string]string
	Description map[string]string

	Icons []Icon

	// PackageNames lists the package-ids associated with this catalog
	// entry. When the composer leaves it empty, the extractor sets it to
	// the id of the real package being processed. A gcid produced by
	// several packages keeps the list stored by the package that first
	// wrote it; later packages are not added.
	PackageNames []string

	CustomFields map[string]string

	MergeKind MergeKind

	// normalized holds the composer's canonical serialization of this
	// component, used as the gcid hash input. Set once by the composer
	// and never mutated afterward.
	normalized []byte
}

// Normalized returns the composer-supplied canonical serialization used to
// compute this component's gcid hash segment.
func (c *Component) Normalized() []byte { return c.normalized }

// SetNormalized records the composer's canonical serialization. Backends
// and the composer adapter call this once, immediately after construction.
func (c *Component) SetNormalized(b []byte) { c.normalized = b }
