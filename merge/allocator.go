package merge

import "github.com/wudi/img2pdf/ir/raw"

// Mapping translates the identifiers of one source document into the
// identifiers of the merged document.
type Mapping map[raw.ObjectRef]raw.ObjectRef

// Allocator hands out object numbers for the merged document. It is a value:
// every method returns the advanced allocator, so no state is shared between
// merges.
type Allocator struct {
	next int
}

// NewAllocator starts numbering at start. Numbers below 1 are raised to 1,
// since object 0 is the head of the xref free list.
func NewAllocator(start int) Allocator {
	if start < 1 {
		start = 1
	}
	return Allocator{next: start}
}

// Assign gives each ref a fresh (n, 0) identifier, in the order given.
// Repeated refs keep their first assignment.
func (a Allocator) Assign(refs []raw.ObjectRef) (Allocator, Mapping) {
	m := make(Mapping, len(refs))
	for _, ref := range refs {
		if _, dup := m[ref]; dup {
			continue
		}
		m[ref] = raw.ObjectRef{Num: a.next}
		a.next++
	}
	return a, m
}

// Next returns a single fresh identifier.
func (a Allocator) Next() (Allocator, raw.ObjectRef) {
	ref := raw.ObjectRef{Num: a.next}
	a.next++
	return a, ref
}

// Peek reports the number the next assignment will use.
func (a Allocator) Peek() int { return a.next }
