package merge

import (
	"fmt"

	"github.com/wudi/img2pdf/ir/raw"
)

// inheritable lists the page attributes a page may take from its ancestors.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Page is a leaf of a source page tree.
type Page struct {
	Ref raw.ObjectRef
	// Inherited holds attributes the page takes from ancestor Pages nodes and
	// does not set itself. Values are in the source document's numbering.
	Inherited map[string]raw.Object
}

// Pages enumerates the leaf pages of doc in page-tree order. Nodes visited
// twice are skipped, so malformed trees with cycles terminate. A Pages node
// without Kids holds no pages; an untyped node without Kids is a page.
func Pages(doc *raw.Document) []Page {
	root, ok := doc.Root()
	if !ok {
		return nil
	}
	catalog, ok := doc.ResolveDict(raw.RefTo(root))
	if !ok {
		return nil
	}
	top, ok := catalog.Ref("Pages")
	if !ok {
		return nil
	}
	w := &pageWalker{doc: doc, seen: make(map[raw.ObjectRef]bool)}
	w.walk(top, nil)
	return w.pages
}

type pageWalker struct {
	doc   *raw.Document
	seen  map[raw.ObjectRef]bool
	pages []Page
}

func (w *pageWalker) walk(ref raw.ObjectRef, attrs map[string]raw.Object) {
	if w.seen[ref] {
		return
	}
	w.seen[ref] = true
	node, ok := w.doc.Objects[ref].(*raw.DictObj)
	if !ok {
		return
	}

	typ, _ := node.Name("Type")
	kidsObj := node.GetKey("Kids")
	if typ == "Pages" && kidsObj == nil {
		return
	}
	if typ == "Page" || (typ == "" && kidsObj == nil) {
		inherited := make(map[string]raw.Object)
		for k, v := range attrs {
			if node.GetKey(k) == nil {
				inherited[k] = v
			}
		}
		w.pages = append(w.pages, Page{Ref: ref, Inherited: inherited})
		return
	}

	next := make(map[string]raw.Object, len(attrs))
	for k, v := range attrs {
		next[k] = v
	}
	for _, k := range inheritable {
		if v := node.GetKey(k); v != nil {
			next[k] = v
		}
	}
	kids, ok := w.doc.Resolve(kidsObj)
	if !ok {
		return
	}
	arr, ok := kids.(*raw.ArrayObj)
	if !ok {
		return
	}
	for _, kid := range arr.Items {
		if r, ok := kid.(raw.RefObj); ok {
			w.walk(r.R, next)
		}
	}
}

// BuildPageTree adds a flat Pages node at pagesRef listing pages in order and
// a Catalog at catalogRef to objects. Every page's Parent is pointed at the
// new Pages node.
func BuildPageTree(objects map[raw.ObjectRef]raw.Object, pages []raw.ObjectRef, pagesRef, catalogRef raw.ObjectRef) error {
	kids := raw.NewArray()
	for _, ref := range pages {
		page, ok := objects[ref].(*raw.DictObj)
		if !ok {
			return fmt.Errorf("merge: page %v is not a dictionary", ref)
		}
		page.SetKey("Parent", raw.RefTo(pagesRef))
		kids.Append(raw.RefTo(ref))
	}

	pagesDict := raw.Dict()
	pagesDict.SetKey("Type", raw.NameLiteral("Pages"))
	pagesDict.SetKey("Kids", kids)
	pagesDict.SetKey("Count", raw.NumberInt(int64(len(pages))))
	objects[pagesRef] = pagesDict

	catalog := raw.Dict()
	catalog.SetKey("Type", raw.NameLiteral("Catalog"))
	catalog.SetKey("Pages", raw.RefTo(pagesRef))
	objects[catalogRef] = catalog
	return nil
}
