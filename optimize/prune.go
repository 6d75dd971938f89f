package optimize

import "github.com/wudi/img2pdf/ir/raw"

// removeUnreachable deletes every object not reachable from the trailer and
// returns how many were removed.
func (o *Optimizer) removeUnreachable(doc *raw.Document) int {
	if doc.Trailer == nil {
		return 0
	}
	reachable := make(map[raw.ObjectRef]bool)
	o.markReachable(doc, doc.Trailer, reachable)

	removed := 0
	for ref := range doc.Objects {
		if !reachable[ref] {
			delete(doc.Objects, ref)
			removed++
		}
	}
	return removed
}

func (o *Optimizer) markReachable(doc *raw.Document, obj raw.Object, reachable map[raw.ObjectRef]bool) {
	switch t := obj.(type) {
	case raw.RefObj:
		if reachable[t.R] {
			return
		}
		reachable[t.R] = true
		if target, ok := doc.Objects[t.R]; ok {
			o.markReachable(doc, target, reachable)
		}
	case *raw.ArrayObj:
		for _, v := range t.Items {
			o.markReachable(doc, v, reachable)
		}
	case *raw.DictObj:
		for _, v := range t.KV {
			o.markReachable(doc, v, reachable)
		}
	case *raw.StreamObj:
		if t.Dict != nil {
			o.markReachable(doc, t.Dict, reachable)
		}
	}
}
