// Package merge combines independently produced documents into one.
//
// Every object of every input is copied into a fresh object table under a
// new identifier; references are rewritten on the way. The page trees of the
// inputs are replaced by a single flat Pages node under a new Catalog.
package merge

import (
	"errors"
	"strconv"
	"strings"

	"github.com/wudi/img2pdf/ir/raw"
)

var errNilDocument = errors.New("nil document")

// Merge combines docs in order. A single input is returned as is. Inputs are
// never modified.
func Merge(docs []*raw.Document) (*raw.Document, error) {
	switch len(docs) {
	case 0:
		return nil, ErrEmptyInput
	case 1:
		if docs[0] == nil {
			return nil, &ParseError{Index: 0, Err: errNilDocument}
		}
		return docs[0], nil
	}

	out := raw.NewDocument("")
	alloc := NewAllocator(1)
	var kids []raw.ObjectRef

	for i, doc := range docs {
		if doc == nil {
			return nil, &ParseError{Index: i, Err: errNilDocument}
		}
		refs := doc.SortedRefs()
		var m Mapping
		alloc, m = alloc.Assign(refs)

		for _, ref := range refs {
			c, err := Remap(doc.Objects[ref], m)
			if err != nil {
				return nil, withSource(err, i, ref)
			}
			out.Objects[m[ref]] = c
		}

		for _, p := range Pages(doc) {
			newRef := m[p.Ref]
			page := out.Objects[newRef].(*raw.DictObj)
			for _, k := range inheritable {
				v, ok := p.Inherited[k]
				if !ok {
					continue
				}
				c, err := Remap(v, m)
				if err != nil {
					return nil, withSource(err, i, p.Ref)
				}
				page.SetKey(k, c)
			}
			kids = append(kids, newRef)
		}
		out.Version = maxVersion(out.Version, doc.Version)
	}

	alloc, pagesRef := alloc.Next()
	_, catalogRef := alloc.Next()
	if err := BuildPageTree(out.Objects, kids, pagesRef, catalogRef); err != nil {
		return nil, err
	}
	out.Trailer.SetKey("Root", raw.RefTo(catalogRef))

	if err := Verify(out); err != nil {
		return nil, err
	}
	return out, nil
}

func withSource(err error, source int, from raw.ObjectRef) error {
	var dangling *DanglingReferenceError
	if errors.As(err, &dangling) {
		dangling.Source = source
		dangling.From = from
	}
	return err
}

// Verify walks every object reachable from the trailer's Root and reports
// the first reference without a target as a *DanglingReferenceError with
// Source -1.
func Verify(doc *raw.Document) error {
	root, ok := doc.Root()
	if !ok {
		return ErrNoRoot
	}
	if _, ok := doc.Objects[root]; !ok {
		return &DanglingReferenceError{Source: -1, Target: root}
	}
	seen := map[raw.ObjectRef]bool{root: true}
	queue := []raw.ObjectRef{root}
	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]
		var missing *raw.ObjectRef
		visitRefs(doc.Objects[from], func(target raw.ObjectRef) {
			if missing != nil || seen[target] {
				return
			}
			if _, ok := doc.Objects[target]; !ok {
				t := target
				missing = &t
				return
			}
			seen[target] = true
			queue = append(queue, target)
		})
		if missing != nil {
			return &DanglingReferenceError{Source: -1, From: from, Target: *missing}
		}
	}
	return nil
}

// visitRefs calls fn for every reference held directly or in nested
// containers of obj, in a stable order.
func visitRefs(obj raw.Object, fn func(raw.ObjectRef)) {
	switch v := obj.(type) {
	case raw.RefObj:
		fn(v.R)
	case *raw.ArrayObj:
		for _, item := range v.Items {
			visitRefs(item, fn)
		}
	case *raw.DictObj:
		for _, k := range v.SortedKeys() {
			visitRefs(v.KV[k], fn)
		}
	case *raw.StreamObj:
		if v.Dict != nil {
			visitRefs(v.Dict, fn)
		}
	}
}

// maxVersion compares "major.minor" header versions numerically.
func maxVersion(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	am, an := splitVersion(a)
	bm, bn := splitVersion(b)
	if bm > am || (bm == am && bn > an) {
		return b
	}
	return a
}

func splitVersion(v string) (int, int) {
	major, minor, _ := strings.Cut(v, ".")
	ma, _ := strconv.Atoi(major)
	mi, _ := strconv.Atoi(minor)
	return ma, mi
}
