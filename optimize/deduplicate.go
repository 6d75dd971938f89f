package optimize

import (
	"context"

	"github.com/wudi/img2pdf/ir/raw"
)

// combineObjects merges indirect objects with equal hashes, repeating until
// nothing changes (two pages pointing at equal images become equal once the
// images are combined). The lowest object number wins. Page tree nodes and
// the catalog are never combined.
func (o *Optimizer) combineObjects(ctx context.Context, doc *raw.Document) (int, error) {
	combined := 0
	changed := true
	for changed {
		if err := ctx.Err(); err != nil {
			return combined, err
		}
		changed = false
		seen := make(map[string]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)

		for _, ref := range doc.SortedRefs() {
			obj := doc.Objects[ref]
			if structural(obj) {
				continue
			}
			h := hashObject(obj)
			if original, ok := seen[h]; ok {
				replacements[ref] = original
				changed = true
			} else {
				seen[h] = ref
			}
		}

		if len(replacements) > 0 {
			o.applyReplacements(doc, replacements)
			for dup := range replacements {
				delete(doc.Objects, dup)
			}
			combined += len(replacements)
		}
	}
	return combined, nil
}

func structural(obj raw.Object) bool {
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return false
	}
	switch typ, _ := d.Name("Type"); typ {
	case "Page", "Pages", "Catalog":
		return true
	}
	return false
}

func (o *Optimizer) applyReplacements(doc *raw.Document, replacements map[raw.ObjectRef]raw.ObjectRef) {
	for _, obj := range doc.Objects {
		o.replaceRefsInObject(obj, replacements)
	}
	if doc.Trailer != nil {
		o.replaceRefsInObject(doc.Trailer, replacements)
	}
}

func (o *Optimizer) replaceRefsInObject(obj raw.Object, replacements map[raw.ObjectRef]raw.ObjectRef) {
	switch t := obj.(type) {
	case *raw.ArrayObj:
		for i, val := range t.Items {
			if ref, ok := val.(raw.RefObj); ok {
				if newRef, found := replacements[ref.R]; found {
					t.Items[i] = raw.RefTo(newRef)
				}
			} else {
				o.replaceRefsInObject(val, replacements)
			}
		}
	case *raw.DictObj:
		for key, val := range t.KV {
			if ref, ok := val.(raw.RefObj); ok {
				if newRef, found := replacements[ref.R]; found {
					t.KV[key] = raw.RefTo(newRef)
				}
			} else {
				o.replaceRefsInObject(val, replacements)
			}
		}
	case *raw.StreamObj:
		if t.Dict != nil {
			o.replaceRefsInObject(t.Dict, replacements)
		}
	}
}
