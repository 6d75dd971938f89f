package raw

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDictAccessors(t *testing.T) {
	d := Dict()
	d.SetKey("Type", NameLiteral("Page"))
	d.SetKey("Parent", Ref(2, 0))
	d.SetKey("Rotate", NumberInt(90))
	d.SetKey("MediaBox", Rect(0, 0, 612, 792.5))

	if v, ok := d.Name("Type"); !ok || v != "Page" {
		t.Fatalf("Name = %q, %v", v, ok)
	}
	if r, ok := d.Ref("Parent"); !ok || r != (ObjectRef{Num: 2}) {
		t.Fatalf("Ref = %v, %v", r, ok)
	}
	if n, ok := d.Int("Rotate"); !ok || n != 90 {
		t.Fatalf("Int = %d, %v", n, ok)
	}
	if _, ok := d.Name("Rotate"); ok {
		t.Fatalf("number reported as name")
	}
	box, ok := d.Array("MediaBox")
	if !ok {
		t.Fatalf("MediaBox missing")
	}
	want := NewArray(NumberInt(0), NumberInt(0), NumberInt(612), NumberFloat(792.5))
	if diff := cmp.Diff(want, box); diff != "" {
		t.Fatalf("Rect (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"MediaBox", "Parent", "Rotate", "Type"}, d.SortedKeys()); diff != "" {
		t.Fatalf("SortedKeys (-want +got):\n%s", diff)
	}
	d.Delete("Rotate")
	if d.GetKey("Rotate") != nil {
		t.Fatalf("Delete left the key")
	}
}

func TestDocumentResolve(t *testing.T) {
	doc := NewDocument("1.7")
	page := Dict()
	doc.Objects[ObjectRef{Num: 1}] = Ref(2, 0)
	doc.Objects[ObjectRef{Num: 2}] = page
	doc.Objects[ObjectRef{Num: 3}] = NewStream(Dict(), []byte("x"))
	doc.Objects[ObjectRef{Num: 7}] = Ref(8, 0)
	doc.Objects[ObjectRef{Num: 8}] = Ref(7, 0)
	doc.Trailer.SetKey("Root", Ref(1, 0))

	got, ok := doc.Resolve(Ref(1, 0))
	if !ok || got != page {
		t.Fatalf("Resolve chain = %v, %v", got, ok)
	}
	if _, ok := doc.Resolve(Ref(9, 0)); ok {
		t.Fatalf("missing target resolved")
	}
	if _, ok := doc.Resolve(Ref(7, 0)); ok {
		t.Fatalf("reference loop resolved")
	}
	if d, ok := doc.ResolveDict(Ref(3, 0)); !ok || d == nil {
		t.Fatalf("stream dictionary not returned")
	}
	if root, ok := doc.Root(); !ok || root.Num != 1 {
		t.Fatalf("Root = %v, %v", root, ok)
	}
	if doc.MaxObjectNumber() != 8 {
		t.Fatalf("MaxObjectNumber = %d", doc.MaxObjectNumber())
	}
	refs := doc.SortedRefs()
	if diff := cmp.Diff([]ObjectRef{{Num: 1}, {Num: 2}, {Num: 3}, {Num: 7}, {Num: 8}}, refs); diff != "" {
		t.Fatalf("SortedRefs (-want +got):\n%s", diff)
	}

	var nilDoc *Document
	if _, ok := nilDoc.Root(); ok {
		t.Fatalf("nil document has a root")
	}
}

func TestNumbers(t *testing.T) {
	if n := NumberFloat(2.75); n.Int() != 2 || n.IsInteger() {
		t.Fatalf("float number %+v", n)
	}
	if n := NumberInt(3); n.Float() != 3 || !n.IsInteger() {
		t.Fatalf("int number %+v", n)
	}
	if n := Num(4); !n.IsInteger() {
		t.Fatalf("Num(4) should be an integer")
	}
}
