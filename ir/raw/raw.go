package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object. Refs are never
// reused while the owning Document is alive.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Less orders refs by number, then generation. Used wherever the
// engine needs a deterministic iteration order over the object table.
func (r ObjectRef) Less(o ObjectRef) bool {
	if r.Num != o.Num {
		return r.Num < o.Num
	}
	return r.Gen < o.Gen
}

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Delete(key Name)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Set(index int, obj Object)
	Len() int
	Append(obj Object)
}

// Stream represents a PDF stream: a dictionary plus a byte payload.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	SetData(data []byte)
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
	SetValue(b []byte)
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is the root container for raw PDF objects. It owns the
// object table and the trailer; every other component holds ObjectRefs.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer Dictionary
}

// NewDocument returns an empty document with an initialized object
// table and trailer.
func NewDocument() *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
	}
}

// Resolve follows a reference to its object, returning direct objects
// unchanged. The second result is false for dangling references.
func (d *Document) Resolve(obj Object) (Object, bool) {
	ref, ok := obj.(Reference)
	if !ok {
		return obj, obj != nil
	}
	target, ok := d.Objects[ref.Ref()]
	return target, ok
}

// Info returns the trailer's Info dictionary reference, if any.
func (d *Document) Info() (ObjectRef, bool) {
	if d.Trailer == nil {
		return ObjectRef{}, false
	}
	v, ok := d.Trailer.Get(NameLiteral("Info"))
	if !ok {
		return ObjectRef{}, false
	}
	ref, ok := v.(Reference)
	if !ok {
		return ObjectRef{}, false
	}
	return ref.Ref(), true
}

// SetInfo points the trailer's Info entry at ref.
func (d *Document) SetInfo(ref ObjectRef) {
	if d.Trailer == nil {
		d.Trailer = Dict()
	}
	d.Trailer.Set(NameLiteral("Info"), Ref(ref.Num, ref.Gen))
}

// PageRoot resolves the trailer's Root catalog and returns the
// reference of the page tree root (the catalog's Pages entry).
func (d *Document) PageRoot() (ObjectRef, bool) {
	if d.Trailer == nil {
		return ObjectRef{}, false
	}
	rootObj, ok := d.Trailer.Get(NameLiteral("Root"))
	if !ok {
		return ObjectRef{}, false
	}
	rootRef, ok := rootObj.(Reference)
	if !ok {
		return ObjectRef{}, false
	}
	catalog, ok := d.Objects[rootRef.Ref()]
	if !ok {
		return ObjectRef{}, false
	}
	dict, ok := catalog.(Dictionary)
	if !ok {
		return ObjectRef{}, false
	}
	pages, ok := dict.Get(NameLiteral("Pages"))
	if !ok {
		return ObjectRef{}, false
	}
	pagesRef, ok := pages.(Reference)
	if !ok {
		return ObjectRef{}, false
	}
	return pagesRef.Ref(), true
}

// SortedRefs returns every ref in the object table sorted by
// (number, generation).
func (d *Document) SortedRefs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// NextRef returns an unused object reference with generation 0.
func (d *Document) NextRef() ObjectRef {
	next := 1
	for ref := range d.Objects {
		if ref.Num >= next {
			next = ref.Num + 1
		}
	}
	return ObjectRef{Num: next, Gen: 0}
}
