package raw

import (
	"testing"
)

func TestSortedRefsIsDeterministic(t *testing.T) {
	doc := NewDocument()
	for _, n := range []int{12, 3, 7, 1, 9} {
		doc.Objects[ObjectRef{Num: n}] = Dict()
	}
	refs := doc.SortedRefs()
	for i := 1; i < len(refs); i++ {
		if !refs[i-1].Less(refs[i]) {
			t.Fatalf("refs out of order: %v before %v", refs[i-1], refs[i])
		}
	}
}

func TestResolveFollowsReferences(t *testing.T) {
	doc := NewDocument()
	target := Dict()
	target.Set(NameLiteral("Marker"), NameLiteral("yes"))
	doc.Objects[ObjectRef{Num: 5}] = target

	obj, ok := doc.Resolve(Ref(5, 0))
	if !ok {
		t.Fatal("Resolve failed for live reference")
	}
	if obj != Object(target) {
		t.Error("Resolve returned wrong object")
	}
	if _, ok := doc.Resolve(Ref(99, 0)); ok {
		t.Error("Resolve should fail for dangling reference")
	}
	// Non-references resolve to themselves.
	if obj, ok := doc.Resolve(target); !ok || obj != Object(target) {
		t.Error("Resolve should pass through direct objects")
	}
}

func TestPageRoot(t *testing.T) {
	doc := NewDocument()
	if _, ok := doc.PageRoot(); ok {
		t.Error("empty document should have no page root")
	}

	pages := Dict()
	pages.Set(NameLiteral("Type"), NameLiteral("Pages"))
	doc.Objects[ObjectRef{Num: 2}] = pages
	catalog := Dict()
	catalog.Set(NameLiteral("Type"), NameLiteral("Catalog"))
	catalog.Set(NameLiteral("Pages"), Ref(2, 0))
	doc.Objects[ObjectRef{Num: 1}] = catalog
	doc.Trailer.Set(NameLiteral("Root"), Ref(1, 0))

	root, ok := doc.PageRoot()
	if !ok || root != (ObjectRef{Num: 2}) {
		t.Errorf("PageRoot = %v, %v; want 2 0 R", root, ok)
	}
}

func TestNextRef(t *testing.T) {
	doc := NewDocument()
	doc.Objects[ObjectRef{Num: 3}] = Dict()
	doc.Objects[ObjectRef{Num: 8}] = Dict()
	next := doc.NextRef()
	if next.Num != 9 || next.Gen != 0 {
		t.Errorf("NextRef = %v, want 9 0 R", next)
	}
}

func TestIsMetadataStream(t *testing.T) {
	dict := Dict()
	dict.Set(NameLiteral("Type"), NameLiteral("Metadata"))
	dict.Set(NameLiteral("Subtype"), NameLiteral("XML"))
	if !IsMetadataStream(NewStream(dict, []byte("<x/>"))) {
		t.Error("XMP stream not recognized")
	}
	if IsMetadataStream(NewStream(Dict(), nil)) {
		t.Error("plain stream misclassified as metadata")
	}
	if IsMetadataStream(dict) {
		t.Error("bare dictionary misclassified as metadata stream")
	}
}
