// Package clean removes unused and duplicate resources from a document
// object graph. It walks the page tree to learn which resource names
// are actually referenced, drops resources nothing points at, merges
// byte-identical resources onto a single survivor, and prunes the empty
// dictionaries left behind.
package clean

import (
	"context"
	"time"

	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/observability"
)

// Config controls which cleaning phases run. The zero value disables
// everything; use DefaultConfig for the full pass.
type Config struct {
	RemoveUnused      bool
	CleanDictionaries bool
	UpdateReferences  bool
	MergeIdentical    bool
	RemoveEmpty       bool
}

// DefaultConfig enables every phase.
func DefaultConfig() Config {
	return Config{
		RemoveUnused:      true,
		CleanDictionaries: true,
		UpdateReferences:  true,
		MergeIdentical:    true,
		RemoveEmpty:       true,
	}
}

// Stats reports what a cleaning pass did. ReferencesUpdated counts
// reference rewrites only; emptied containers are tallied separately.
type Stats struct {
	ResourcesProcessed int
	ResourcesRemoved   int
	ReferencesUpdated  int
	DictionariesPruned int
	BytesSaved         int64
	Duration           time.Duration
}

// Cleaner performs resource cleaning passes over documents. A single
// Cleaner is safe to reuse across documents; it holds no per-document
// state.
type Cleaner struct {
	config Config
	log    observability.Logger
	tracer observability.Tracer
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the logger used during cleaning.
func WithLogger(l observability.Logger) Option {
	return func(c *Cleaner) { c.log = l }
}

// WithTracer sets the tracer used during cleaning.
func WithTracer(t observability.Tracer) Option {
	return func(c *Cleaner) { c.tracer = t }
}

// New creates a Cleaner with the given configuration.
func New(config Config, opts ...Option) *Cleaner {
	c := &Cleaner{
		config: config,
		log:    observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean runs the configured phases against doc, mutating it in place.
// An error from the usage walk (cycle, malformed node, missing root)
// aborts the pass before anything is removed, so the document is either
// fully cleaned or untouched structurally.
func (c *Cleaner) Clean(ctx context.Context, doc *raw.Document) (*Stats, error) {
	ctx, span := c.tracer.StartSpan(ctx, "clean.Clean")
	defer span.Finish()

	start := time.Now()
	stats := &Stats{}

	u, err := c.analyzeUsage(doc)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.config.RemoveUnused {
		c.removeUnused(doc, u, stats)
	}
	if c.config.MergeIdentical {
		c.mergeIdentical(doc, stats)
	}
	if c.config.RemoveEmpty {
		c.removeEmpty(doc, stats)
	}

	stats.Duration = time.Since(start)
	span.SetTag(observability.MetricResourcesRemoved, stats.ResourcesRemoved)
	c.log.Info("clean pass complete",
		observability.Int("processed", stats.ResourcesProcessed),
		observability.Int("removed", stats.ResourcesRemoved),
		observability.Int("refs_updated", stats.ReferencesUpdated),
		observability.Int("dicts_pruned", stats.DictionariesPruned),
		observability.Int64("bytes_saved", stats.BytesSaved),
		observability.Duration("duration", stats.Duration))
	return stats, nil
}

// classify identifies which resource category an object belongs to.
// Objects that are not resources return ok=false and are never touched.
func classify(obj raw.Object) (Category, bool) {
	dict, ok := raw.StreamDict(obj)
	if !ok {
		return 0, false
	}
	typ, _ := raw.DictName(dict, "Type")
	sub, _ := raw.DictName(dict, "Subtype")
	switch typ {
	case "Font":
		return CategoryFont, true
	case "Pattern":
		return CategoryPattern, true
	case "ColorSpace":
		return CategoryColorSpace, true
	case "ExtGState":
		return CategoryGraphicsState, true
	case "XObject":
		if sub == "Form" {
			return CategoryForm, true
		}
		return CategoryImage, true
	}
	// Image streams frequently omit Type and carry only Subtype.
	switch sub {
	case "Image":
		return CategoryImage, true
	case "Form":
		return CategoryForm, true
	}
	return 0, false
}

// resourceName returns the object's own name. Resources written without
// a Name entry all collide on the same placeholder, matching how
// nameless resources are treated as a single anonymous identity.
func resourceName(obj raw.Object) string {
	dict, ok := raw.StreamDict(obj)
	if !ok {
		return "Unknown"
	}
	if name, ok := raw.DictName(dict, "Name"); ok {
		return name
	}
	if s, ok := raw.DictString(dict, "Name"); ok {
		return string(s)
	}
	return "Unknown"
}

func (c *Cleaner) removeUnused(doc *raw.Document, u *usage, stats *Stats) {
	for _, ref := range doc.SortedRefs() {
		obj := doc.Objects[ref]
		cat, ok := classify(obj)
		if !ok {
			continue
		}
		stats.ResourcesProcessed++
		name := resourceName(obj)
		if u.used(cat, name) {
			continue
		}
		stats.BytesSaved += objectSize(obj)
		delete(doc.Objects, ref)
		stats.ResourcesRemoved++
		c.log.Debug("removed unused resource",
			observability.Int("object", ref.Num),
			observability.String("category", cat.String()),
			observability.String("name", name))
	}
}

// mergeIdentical groups remaining resources of the same category by
// content hash and collapses each group onto its lowest-numbered
// member. References are rewritten across the whole graph before the
// duplicate is deleted, so no dangling reference is ever observable.
func (c *Cleaner) mergeIdentical(doc *raw.Document, stats *Stats) {
	graph := buildDepGraph(doc)

	type groupKey struct {
		cat  Category
		hash string
	}
	groups := make(map[groupKey][]raw.ObjectRef)
	for _, ref := range doc.SortedRefs() {
		obj := doc.Objects[ref]
		cat, ok := classify(obj)
		if !ok {
			continue
		}
		key := groupKey{cat, contentHash(obj)}
		groups[key] = append(groups[key], ref)
	}

	for key, refs := range groups {
		if len(refs) < 2 {
			continue
		}
		// SortedRefs iteration already ordered refs, so the survivor
		// is the lowest-numbered object.
		survivor := refs[0]
		for _, dup := range refs[1:] {
			if !graph.mergeSafe(survivor, dup) {
				c.log.Warn("skipping merge with diverging dependencies",
					observability.Int("survivor", survivor.Num),
					observability.Int("duplicate", dup.Num))
				continue
			}
			if c.config.UpdateReferences {
				stats.ReferencesUpdated += rewriteRefs(doc, dup, survivor)
			}
			stats.BytesSaved += objectSize(doc.Objects[dup])
			delete(doc.Objects, dup)
			stats.ResourcesRemoved++
			c.log.Debug("merged duplicate resource",
				observability.Int("survivor", survivor.Num),
				observability.Int("duplicate", dup.Num),
				observability.String("category", key.cat.String()))
		}
	}
}

// rewriteRefs replaces every reference to from with a reference to to,
// across all objects and the trailer, returning how many slots changed.
func rewriteRefs(doc *raw.Document, from, to raw.ObjectRef) int {
	n := 0
	for _, ref := range doc.SortedRefs() {
		n += rewriteObjRefs(doc.Objects[ref], from, to)
	}
	if doc.Trailer != nil {
		n += rewriteObjRefs(doc.Trailer, from, to)
	}
	return n
}

func rewriteObjRefs(obj raw.Object, from, to raw.ObjectRef) int {
	n := 0
	switch t := obj.(type) {
	case raw.Dictionary:
		for _, k := range t.Keys() {
			v, _ := t.Get(k)
			if r, ok := v.(raw.Reference); ok && r.Ref() == from {
				t.Set(k, raw.Ref(to.Num, to.Gen))
				n++
				continue
			}
			n += rewriteObjRefs(v, from, to)
		}
	case raw.Array:
		for i := 0; i < t.Len(); i++ {
			v, _ := t.Get(i)
			if r, ok := v.(raw.Reference); ok && r.Ref() == from {
				t.Set(i, raw.Ref(to.Num, to.Gen))
				n++
				continue
			}
			n += rewriteObjRefs(v, from, to)
		}
	case raw.Stream:
		n += rewriteObjRefs(t.Dictionary(), from, to)
	}
	return n
}

// removeEmpty prunes category dictionaries that cleaning emptied out,
// and then Resources dictionaries left with no categories at all.
func (c *Cleaner) removeEmpty(doc *raw.Document, stats *Stats) {
	if !c.config.CleanDictionaries {
		return
	}
	categoryKeys := []string{"Font", "XObject", "Pattern", "ColorSpace", "ExtGState"}
	for _, ref := range doc.SortedRefs() {
		obj := doc.Objects[ref]
		dict, ok := obj.(raw.Dictionary)
		if !ok {
			continue
		}
		res, ok := raw.DictDict(doc, dict, "Resources")
		if !ok {
			continue
		}
		for _, key := range categoryKeys {
			sub, ok := raw.DictDict(doc, res, key)
			if ok && sub.Len() == 0 {
				res.Delete(raw.NameLiteral(key))
				stats.DictionariesPruned++
			}
		}
		if res.Len() == 0 {
			if direct, _ := dict.Get(raw.NameLiteral("Resources")); direct != nil {
				if _, isRef := direct.(raw.Reference); !isRef {
					dict.Delete(raw.NameLiteral("Resources"))
					stats.DictionariesPruned++
				}
			}
		}
	}
}

func objectSize(obj raw.Object) int64 {
	if s, ok := obj.(raw.Stream); ok {
		return s.Length()
	}
	return 0
}
