package clean

import (
	"github.com/kartik4091/pdfsanitize/ir/raw"
)

// depGraph maps each object to the set of objects its Resources
// sub-dictionary references. It exists to validate that two candidates
// for merging really depend on the same objects; it does not drive
// removal decisions.
type depGraph map[raw.ObjectRef]map[raw.ObjectRef]struct{}

func buildDepGraph(doc *raw.Document) depGraph {
	g := make(depGraph)
	for _, ref := range doc.SortedRefs() {
		obj := doc.Objects[ref]
		dict, ok := raw.StreamDict(obj)
		if !ok {
			continue
		}
		res, ok := dict.Get(raw.NameLiteral("Resources"))
		if !ok {
			continue
		}
		deps := make(map[raw.ObjectRef]struct{})
		collectRefs(res, deps)
		if len(deps) > 0 {
			g[ref] = deps
		}
	}
	return g
}

func collectRefs(obj raw.Object, out map[raw.ObjectRef]struct{}) {
	switch t := obj.(type) {
	case raw.Reference:
		out[t.Ref()] = struct{}{}
	case raw.Dictionary:
		for _, k := range t.Keys() {
			v, _ := t.Get(k)
			collectRefs(v, out)
		}
	case raw.Array:
		for i := 0; i < t.Len(); i++ {
			v, _ := t.Get(i)
			collectRefs(v, out)
		}
	}
}

// mergeSafe reports whether a and b depend on the same objects. Equal
// content hashes imply equal reference sets for streams, so this is a
// cheap consistency check rather than a new source of truth.
func (g depGraph) mergeSafe(a, b raw.ObjectRef) bool {
	da, db := g[a], g[b]
	if len(da) != len(db) {
		return false
	}
	for ref := range da {
		if _, ok := db[ref]; !ok {
			return false
		}
	}
	return true
}
