package merge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/img2pdf/ir/raw"
)

func TestMergeEmptyInput(t *testing.T) {
	for _, docs := range [][]*raw.Document{nil, {}} {
		out, err := Merge(docs)
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("expected ErrEmptyInput, got %v", err)
		}
		if out != nil {
			t.Fatalf("expected no output")
		}
	}
}

func TestMergeSingleIsPassthrough(t *testing.T) {
	doc := onePage(100, 100, "only")
	out, err := Merge([]*raw.Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	if out != doc {
		t.Fatalf("single input must be returned unchanged")
	}
}

func TestMergePageCountAndOrder(t *testing.T) {
	for n := 2; n <= 6; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var docs []*raw.Document
			for i := 0; i < n; i++ {
				docs = append(docs, onePage(float64(10*(i+1)), float64(20*(i+1)), fmt.Sprintf("page-%d", i)))
			}
			out, err := Merge(docs)
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			pages := Pages(out)
			if len(pages) != n {
				t.Fatalf("got %d pages, want %d", len(pages), n)
			}
			for i, p := range pages {
				want := []float64{0, 0, float64(10 * (i + 1)), float64(20 * (i + 1))}
				if diff := cmp.Diff(want, mediaBox(out, p.Ref)); diff != "" {
					t.Errorf("page %d MediaBox (-want +got):\n%s", i, diff)
				}
				if got, want := contentOf(out, p.Ref), contentOf(docs[i], raw.ObjectRef{Num: 3}); got != want {
					t.Errorf("page %d content %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestMergeStructure(t *testing.T) {
	docs := []*raw.Document{onePage(100, 100, "a"), onePage(50, 80, "b"), onePage(10, 10, "c")}
	out, err := Merge(docs)
	if err != nil {
		t.Fatal(err)
	}

	// every source object survives under a distinct number, plus Pages and Catalog
	total := 0
	for _, d := range docs {
		total += len(d.Objects)
	}
	if len(out.Objects) != total+2 {
		t.Fatalf("got %d objects, want %d", len(out.Objects), total+2)
	}
	nums := make(map[int]bool)
	for ref := range out.Objects {
		if nums[ref.Num] {
			t.Fatalf("object number %d used twice", ref.Num)
		}
		nums[ref.Num] = true
		if ref.Gen != 0 {
			t.Fatalf("unexpected generation in %v", ref)
		}
	}

	if err := Verify(out); err != nil {
		t.Fatalf("merged document has dangling references: %v", err)
	}

	root, _ := out.Root()
	catalog := out.Objects[root].(*raw.DictObj)
	if typ, _ := catalog.Name("Type"); typ != "Catalog" {
		t.Fatalf("root is %q", typ)
	}
	pagesRef, ok := catalog.Ref("Pages")
	if !ok {
		t.Fatalf("catalog without Pages")
	}
	pagesNode := out.Objects[pagesRef].(*raw.DictObj)
	kids, _ := pagesNode.Array("Kids")
	count, _ := pagesNode.Int("Count")
	if kids.Len() != 3 || count != 3 {
		t.Fatalf("Kids %d, Count %d", kids.Len(), count)
	}
	for _, kid := range kids.Items {
		page := out.Objects[kid.(raw.RefObj).R].(*raw.DictObj)
		if parent, _ := page.Ref("Parent"); parent != pagesRef {
			t.Fatalf("page %v has Parent %v, want %v", kid, parent, pagesRef)
		}
	}

	// new nodes are numbered after every source object
	for ref := range out.Objects {
		if ref != pagesRef && ref != root && ref.Num >= pagesRef.Num {
			t.Fatalf("source object %v allocated after Pages %v", ref, pagesRef)
		}
	}
	if catalogTrailerKeys := out.Trailer.SortedKeys(); !cmp.Equal(catalogTrailerKeys, []string{"Root"}) {
		t.Fatalf("trailer keys %v", catalogTrailerKeys)
	}
}

func TestMergeExampleSizes(t *testing.T) {
	a := onePage(100, 100, "A")
	b := onePage(50, 80, "B")
	out, err := Merge([]*raw.Document{a, b})
	if err != nil {
		t.Fatal(err)
	}
	root, _ := out.Root()
	pagesRef, _ := out.Objects[root].(*raw.DictObj).Ref("Pages")
	pagesNode := out.Objects[pagesRef].(*raw.DictObj)
	kids, _ := pagesNode.Array("Kids")
	if kids.Len() != 2 {
		t.Fatalf("Kids has %d entries", kids.Len())
	}
	if count, _ := pagesNode.Int("Count"); count != 2 {
		t.Fatalf("Count = %d", count)
	}
	want := [][]float64{{0, 0, 100, 100}, {0, 0, 50, 80}}
	for i, kid := range kids.Items {
		ref := kid.(raw.RefObj).R
		if diff := cmp.Diff(want[i], mediaBox(out, ref)); diff != "" {
			t.Fatalf("page %d size (-want +got):\n%s", i, diff)
		}
		if parent, _ := out.Objects[ref].(*raw.DictObj).Ref("Parent"); parent != pagesRef {
			t.Fatalf("page %d Parent %v", i, parent)
		}
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	docs := []*raw.Document{onePage(100, 100, "a"), onePage(50, 80, "b")}
	before := []*raw.Document{clone(docs[0]), clone(docs[1])}
	out, err := Merge(docs)
	if err != nil {
		t.Fatal(err)
	}
	for i := range docs {
		if diff := cmp.Diff(before[i], docs[i]); diff != "" {
			t.Fatalf("input %d modified (-before +after):\n%s", i, diff)
		}
	}

	// payloads are copied, not shared
	for ref, obj := range out.Objects {
		s, ok := obj.(*raw.StreamObj)
		if !ok || len(s.Data) == 0 {
			continue
		}
		s.Data[0] = 'X'
		for i, d := range docs {
			for _, src := range d.Objects {
				if ss, ok := src.(*raw.StreamObj); ok && len(ss.Data) > 0 && ss.Data[0] == 'X' {
					t.Fatalf("stream %v shares memory with input %d", ref, i)
				}
			}
		}
	}
}

func TestMergeEmptyDocumentKeepsOrder(t *testing.T) {
	out, err := Merge([]*raw.Document{onePage(1, 1, "first"), emptyDoc(), onePage(2, 2, "second")})
	if err != nil {
		t.Fatal(err)
	}
	pages := Pages(out)
	if len(pages) != 2 {
		t.Fatalf("got %d pages", len(pages))
	}
	if got := contentOf(out, pages[1].Ref); got != contentOf(onePage(2, 2, "second"), raw.ObjectRef{Num: 3}) {
		t.Fatalf("second page content %q", got)
	}
	if out.Version != "1.7" {
		t.Fatalf("version %q, want the highest input version", out.Version)
	}
}

func TestMergeMaterializesInheritedAttributes(t *testing.T) {
	doc := onePage(100, 100, "inherit")
	page := doc.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
	pagesNode := doc.Objects[raw.ObjectRef{Num: 2}].(*raw.DictObj)
	// move MediaBox and Resources up to the Pages node
	pagesNode.SetKey("MediaBox", page.GetKey("MediaBox"))
	pagesNode.SetKey("Resources", page.GetKey("Resources"))
	pagesNode.SetKey("Rotate", raw.NumberInt(90))
	page.Delete("MediaBox")
	page.Delete("Resources")

	out, err := Merge([]*raw.Document{doc, onePage(5, 5, "other")})
	if err != nil {
		t.Fatal(err)
	}
	first := Pages(out)[0]
	if diff := cmp.Diff([]float64{0, 0, 100, 100}, mediaBox(out, first.Ref)); diff != "" {
		t.Fatalf("MediaBox not materialized (-want +got):\n%s", diff)
	}
	migrated := out.Objects[first.Ref].(*raw.DictObj)
	if rot, _ := migrated.Int("Rotate"); rot != 90 {
		t.Fatalf("Rotate = %d", rot)
	}
	res, ok := migrated.GetKey("Resources").(*raw.DictObj)
	if !ok {
		t.Fatalf("Resources not materialized")
	}
	xo := res.GetKey("XObject").(*raw.DictObj)
	imgRef, _ := xo.Ref("Im0")
	img := out.Objects[imgRef].(*raw.StreamObj)
	if string(img.Data) != "inherit" {
		t.Fatalf("inherited resources point at %q", img.Data)
	}
}

func TestMergeDanglingReferenceInSource(t *testing.T) {
	bad := onePage(50, 50, "bad")
	page := bad.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
	page.SetKey("Annots", raw.NewArray(raw.Ref(42, 0)))

	_, err := Merge([]*raw.Document{onePage(10, 10, "ok"), bad})
	var dangling *DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
	want := DanglingReferenceError{Source: 1, From: raw.ObjectRef{Num: 3}, Target: raw.ObjectRef{Num: 42}}
	if *dangling != want {
		t.Fatalf("got %+v, want %+v", *dangling, want)
	}
}

func TestMergeNilDocument(t *testing.T) {
	_, err := Merge([]*raw.Document{onePage(1, 1, "x"), nil})
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Index != 1 {
		t.Fatalf("expected ParseError for index 1, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	doc := onePage(10, 10, "v")
	if err := Verify(doc); err != nil {
		t.Fatalf("valid document: %v", err)
	}
	delete(doc.Objects, raw.ObjectRef{Num: 5})
	err := Verify(doc)
	var dangling *DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
	if dangling.Source != -1 || dangling.Target != (raw.ObjectRef{Num: 5}) || dangling.From != (raw.ObjectRef{Num: 3}) {
		t.Fatalf("unexpected error %+v", dangling)
	}

	// unreachable objects are not checked
	orphan := onePage(10, 10, "o")
	orphan.Objects[raw.ObjectRef{Num: 9}] = raw.NewArray(raw.Ref(77, 0))
	if err := Verify(orphan); err != nil {
		t.Fatalf("orphan object should be ignored: %v", err)
	}

	if err := Verify(raw.NewDocument("1.4")); !errors.Is(err, ErrNoRoot) {
		t.Fatalf("missing Root: got %v, want ErrNoRoot", err)
	}
}

func TestMaxVersion(t *testing.T) {
	tests := []struct{ a, b, want string }{
		{"", "1.4", "1.4"},
		{"1.7", "", "1.7"},
		{"1.4", "1.7", "1.7"},
		{"1.10", "1.9", "1.10"},
		{"2.0", "1.7", "2.0"},
	}
	for _, tt := range tests {
		if got := maxVersion(tt.a, tt.b); got != tt.want {
			t.Errorf("maxVersion(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
