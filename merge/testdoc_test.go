package merge

import (
	"fmt"

	"github.com/wudi/img2pdf/ir/raw"
)

// onePage builds the layout a renderer produces: catalog 1, pages 2, page 3,
// content 4 and an image 5. Every document uses the same numbers.
func onePage(w, h float64, label string) *raw.Document {
	doc := raw.NewDocument("1.7")

	catalog := raw.Dict()
	catalog.SetKey("Type", raw.NameLiteral("Catalog"))
	catalog.SetKey("Pages", raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog

	pages := raw.Dict()
	pages.SetKey("Type", raw.NameLiteral("Pages"))
	pages.SetKey("Kids", raw.NewArray(raw.Ref(3, 0)))
	pages.SetKey("Count", raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	xobjects := raw.Dict()
	xobjects.SetKey("Im0", raw.Ref(5, 0))
	res := raw.Dict()
	res.SetKey("XObject", xobjects)

	page := raw.Dict()
	page.SetKey("Type", raw.NameLiteral("Page"))
	page.SetKey("Parent", raw.Ref(2, 0))
	page.SetKey("MediaBox", raw.Rect(0, 0, w, h))
	page.SetKey("Resources", res)
	page.SetKey("Contents", raw.Ref(4, 0))
	doc.Objects[raw.ObjectRef{Num: 3}] = page

	content := []byte(fmt.Sprintf("q %g 0 0 %g 0 0 cm /Im0 Do Q %% %s", w, h, label))
	doc.Objects[raw.ObjectRef{Num: 4}] = raw.NewStream(raw.Dict(), content)

	img := raw.Dict()
	img.SetKey("Type", raw.NameLiteral("XObject"))
	img.SetKey("Subtype", raw.NameLiteral("Image"))
	img.SetKey("Width", raw.NumberInt(1))
	img.SetKey("Height", raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 5}] = raw.NewStream(img, []byte(label))

	doc.Trailer.SetKey("Root", raw.Ref(1, 0))
	doc.Trailer.SetKey("Size", raw.NumberInt(6))
	return doc
}

// emptyDoc has a catalog and a page tree without pages.
func emptyDoc() *raw.Document {
	doc := raw.NewDocument("1.4")
	catalog := raw.Dict()
	catalog.SetKey("Type", raw.NameLiteral("Catalog"))
	catalog.SetKey("Pages", raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog
	pages := raw.Dict()
	pages.SetKey("Type", raw.NameLiteral("Pages"))
	pages.SetKey("Kids", raw.NewArray())
	pages.SetKey("Count", raw.NumberInt(0))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages
	doc.Trailer.SetKey("Root", raw.Ref(1, 0))
	return doc
}

// clone deep-copies doc using an identity mapping.
func clone(doc *raw.Document) *raw.Document {
	m := make(Mapping, len(doc.Objects))
	for ref := range doc.Objects {
		m[ref] = ref
	}
	out := raw.NewDocument(doc.Version)
	for ref, obj := range doc.Objects {
		c, err := Remap(obj, m)
		if err != nil {
			panic(err)
		}
		out.Objects[ref] = c
	}
	for k, v := range doc.Trailer.KV {
		out.Trailer.SetKey(k, v)
	}
	return out
}

func mediaBox(doc *raw.Document, ref raw.ObjectRef) []float64 {
	page := doc.Objects[ref].(*raw.DictObj)
	arr, _ := doc.Resolve(page.GetKey("MediaBox"))
	var out []float64
	for _, item := range arr.(*raw.ArrayObj).Items {
		out = append(out, item.(raw.NumberObj).Float())
	}
	return out
}

func contentOf(doc *raw.Document, ref raw.ObjectRef) string {
	page := doc.Objects[ref].(*raw.DictObj)
	s, _ := doc.Resolve(page.GetKey("Contents"))
	return string(s.(*raw.StreamObj).Data)
}
