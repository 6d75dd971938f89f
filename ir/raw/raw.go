package raw

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// ObjectRef identifies an indirect object within one document. Numbers are
// only unique inside the document that owns them.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Less orders references by number, then generation.
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
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (undecoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
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
	IsHex() bool
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

// Document is a flat object table plus the trailer naming its catalog.
//
// Objects refer to each other only through references, so the cycles of the
// page tree (page -> Parent -> Pages -> Kids -> page) live in the table and
// never in Go pointers.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"
}

// NewDocument returns an empty document with an empty trailer.
func NewDocument(version string) *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: version,
	}
}

// Root returns the trailer's Root reference.
func (d *Document) Root() (ObjectRef, bool) {
	if d == nil || d.Trailer == nil {
		return ObjectRef{}, false
	}
	return d.Trailer.Ref("Root")
}

// Resolve follows references until a direct object is reached. A reference
// without a target resolves to nil, false.
func (d *Document) Resolve(obj Object) (Object, bool) {
	seen := 0
	for {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj, obj != nil
		}
		target, found := d.Objects[ref.R]
		if !found {
			return nil, false
		}
		obj = target
		seen++
		if seen > len(d.Objects) {
			return nil, false
		}
	}
}

// ResolveDict resolves obj and returns it as a dictionary. Streams yield
// their dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	v, ok := d.Resolve(obj)
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case *DictObj:
		return t, true
	case *StreamObj:
		return t.Dict, t.Dict != nil
	}
	return nil, false
}

// SortedRefs returns the identifiers of the object table in ascending order.
func (d *Document) SortedRefs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// MaxObjectNumber returns the highest object number in use, or 0.
func (d *Document) MaxObjectNumber() int {
	maxNum := 0
	for ref := range d.Objects {
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}
	return maxNum
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
