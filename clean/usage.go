package clean

import (
	"github.com/kartik4091/pdfsanitize/errs"
	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/observability"
)

// Category identifies the resource class a name is looked up in.
// Names are only meaningful within their own category.
type Category int

const (
	CategoryFont Category = iota
	CategoryImage
	CategoryForm
	CategoryPattern
	CategoryColorSpace
	CategoryGraphicsState
)

func (c Category) String() string {
	switch c {
	case CategoryFont:
		return "font"
	case CategoryImage:
		return "image"
	case CategoryForm:
		return "form"
	case CategoryPattern:
		return "pattern"
	case CategoryColorSpace:
		return "color-space"
	case CategoryGraphicsState:
		return "graphics-state"
	default:
		return "unknown"
	}
}

// maxTreeDepth bounds the page tree walk so a cyclic Kids chain that
// dodges the visited set cannot recurse forever.
const maxTreeDepth = 256

// usage records, per category, which resource names the page tree
// actually references.
type usage struct {
	names map[Category]map[string]struct{}
}

func newUsage() *usage {
	return &usage{names: make(map[Category]map[string]struct{})}
}

func (u *usage) mark(cat Category, name string) {
	set, ok := u.names[cat]
	if !ok {
		set = make(map[string]struct{})
		u.names[cat] = set
	}
	set[name] = struct{}{}
}

func (u *usage) used(cat Category, name string) bool {
	_, ok := u.names[cat][name]
	return ok
}

// analyzeUsage walks the page tree from the catalog and collects every
// resource name each page's Resources dictionary mentions.
func (c *Cleaner) analyzeUsage(doc *raw.Document) (*usage, error) {
	u := newUsage()
	root, ok := doc.PageRoot()
	if !ok {
		return nil, errs.Structuralf("clean", "document has no page tree root")
	}
	visited := make(map[raw.ObjectRef]struct{})
	if err := c.walkPageNode(doc, root, u, visited, 0); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Cleaner) walkPageNode(doc *raw.Document, ref raw.ObjectRef, u *usage, visited map[raw.ObjectRef]struct{}, depth int) error {
	if depth > maxTreeDepth {
		return errs.Structuralf("clean", "page tree exceeds depth %d at object %d", maxTreeDepth, ref.Num)
	}
	if _, seen := visited[ref]; seen {
		return errs.Structuralf("clean", "page tree cycle at object %d", ref.Num)
	}
	visited[ref] = struct{}{}

	obj, ok := doc.Objects[ref]
	if !ok {
		c.log.Warn("page tree references missing object", observability.Int("object", ref.Num))
		return nil
	}
	dict, ok := obj.(raw.Dictionary)
	if !ok {
		return errs.Structuralf("clean", "page tree node %d is not a dictionary", ref.Num)
	}

	typ, _ := raw.DictName(dict, "Type")
	switch typ {
	case "Pages":
		kids, ok := dict.Get(raw.NameLiteral("Kids"))
		if !ok {
			return nil
		}
		arr, ok := kids.(raw.Array)
		if !ok {
			return errs.Structuralf("clean", "Kids of node %d is not an array", ref.Num)
		}
		for i := 0; i < arr.Len(); i++ {
			kid, _ := arr.Get(i)
			kr, ok := kid.(raw.Reference)
			if !ok {
				return errs.Structuralf("clean", "kid %d of node %d is not a reference", i, ref.Num)
			}
			if err := c.walkPageNode(doc, kr.Ref(), u, visited, depth+1); err != nil {
				return err
			}
		}
	case "Page":
		c.collectPageResources(doc, dict, u)
	default:
		// Leaf nodes without a Type are tolerated; an untyped node
		// that still carries Kids is a malformed intermediate.
		if _, hasKids := dict.Get(raw.NameLiteral("Kids")); hasKids {
			return errs.Structuralf("clean", "page tree node %d has Kids but no Pages type", ref.Num)
		}
	}
	return nil
}

func (c *Cleaner) collectPageResources(doc *raw.Document, page raw.Dictionary, u *usage) {
	res, ok := raw.DictDict(doc, page, "Resources")
	if !ok {
		return
	}
	c.collectNamed(doc, res, "Font", CategoryFont, u)
	c.collectXObjects(doc, res, u)
	c.collectNamed(doc, res, "Pattern", CategoryPattern, u)
	c.collectNamed(doc, res, "ColorSpace", CategoryColorSpace, u)
	c.collectNamed(doc, res, "ExtGState", CategoryGraphicsState, u)
}

func (c *Cleaner) collectNamed(doc *raw.Document, res raw.Dictionary, key string, cat Category, u *usage) {
	sub, ok := raw.DictDict(doc, res, key)
	if !ok {
		return
	}
	for _, name := range sub.Keys() {
		u.mark(cat, name.Value())
	}
}

// collectXObjects splits the XObject dictionary into image and form
// usage by resolving each entry's Subtype. Entries that point at a
// missing object are skipped with a warning rather than failing the
// whole pass.
func (c *Cleaner) collectXObjects(doc *raw.Document, res raw.Dictionary, u *usage) {
	sub, ok := raw.DictDict(doc, res, "XObject")
	if !ok {
		return
	}
	for _, name := range sub.Keys() {
		entry, _ := sub.Get(name)
		target, ok := doc.Resolve(entry)
		if !ok {
			c.log.Warn("dangling XObject resource", observability.String("name", name.Value()))
			continue
		}
		cat := CategoryImage
		if dict, ok := raw.StreamDict(target); ok {
			if sub, _ := raw.DictName(dict, "Subtype"); sub == "Form" {
				cat = CategoryForm
			}
		}
		u.mark(cat, name.Value())
	}
}
