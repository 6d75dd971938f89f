package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/img2pdf/builder"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/merge"
	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/parser"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func parse(t *testing.T, pdf []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{Strict: true}).ParseBytes(context.Background(), pdf)
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if err := merge.Verify(doc); err != nil {
		t.Fatalf("output has dangling references: %v", err)
	}
	return doc
}

func pageHeights(t *testing.T, doc *raw.Document) []float64 {
	t.Helper()
	var heights []float64
	for _, p := range merge.Pages(doc) {
		page := doc.Objects[p.Ref].(*raw.DictObj)
		box, _ := page.Array("MediaBox")
		heights = append(heights, box.Items[3].(raw.NumberObj).Float())
	}
	return heights
}

// delayed returns a source that becomes readable after d.
func delayed(name string, data []byte, d time.Duration) Source {
	return Source{Name: name, Open: func() (io.ReadCloser, error) {
		time.Sleep(d)
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

func TestConvertKeepsOrderUnderConcurrency(t *testing.T) {
	const n = 8
	var sources []Source
	var want []float64
	for i := 0; i < n; i++ {
		// earlier images finish last
		sources = append(sources, delayed(fmt.Sprintf("%d.png", i), pngBytes(t, 10, 20+i, color.White), time.Duration(n-i)*3*time.Millisecond))
		want = append(want, float64(20+i))
	}
	var mu sync.Mutex
	var progress []int
	c := New(Config{
		Page:          builder.PageOptions{DPI: 72},
		Workers:       4,
		Deterministic: true,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != n {
				t.Errorf("total = %d", total)
			}
			progress = append(progress, done)
		},
	})
	res, err := c.Convert(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != n || len(res.Skipped) != 0 {
		t.Fatalf("pages %d, skipped %d", res.Pages, len(res.Skipped))
	}
	if diff := cmp.Diff(want, pageHeights(t, parse(t, res.PDF))); diff != "" {
		t.Fatalf("page order (-want +got):\n%s", diff)
	}
	if len(progress) != n {
		t.Fatalf("progress called %d times", len(progress))
	}

	again, err := c.Convert(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(res.PDF, again.PDF) {
		t.Fatalf("deterministic conversion differs between runs")
	}
}

func TestConvertSingleImage(t *testing.T) {
	res, err := New(Config{Page: builder.PageOptions{DPI: 72}}).Convert(context.Background(),
		[]Source{BytesSource("one.png", pngBytes(t, 100, 100, color.White))})
	if err != nil {
		t.Fatal(err)
	}
	doc := parse(t, res.PDF)
	if diff := cmp.Diff([]float64{100}, pageHeights(t, doc)); diff != "" {
		t.Fatalf("heights (-want +got):\n%s", diff)
	}
}

func TestConvertInfo(t *testing.T) {
	c := New(Config{Title: "Fotos für Oma", Deterministic: true})
	res, err := c.Convert(context.Background(), []Source{
		BytesSource("a.png", pngBytes(t, 4, 4, color.White)),
		BytesSource("b.png", pngBytes(t, 4, 4, color.Black)),
	})
	if err != nil {
		t.Fatal(err)
	}
	doc := parse(t, res.PDF)
	info, ok := doc.ResolveDict(doc.Trailer.GetKey("Info"))
	if !ok {
		t.Fatalf("trailer has no Info")
	}
	got := map[string]string{}
	for _, k := range []string{"Title", "Producer", "CreationDate"} {
		s, _ := info.GetKey(k).(raw.StringObj)
		got[k] = raw.DecodeTextString(s)
	}
	want := map[string]string{
		"Title":        "Fotos für Oma",
		"Producer":     DefaultProducer,
		"CreationDate": "D:19700101000000Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Info (-want +got):\n%s", diff)
	}
}

func TestConvertPartialSuccess(t *testing.T) {
	sources := []Source{
		BytesSource("a.png", pngBytes(t, 10, 10, color.White)),
		BytesSource("broken.png", []byte("not an image")),
		BytesSource("c.png", pngBytes(t, 10, 20, color.White)),
		{Name: "missing.png", Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") }},
	}

	res, err := New(Config{AllowPartial: true, Page: builder.PageOptions{DPI: 72}}).Convert(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pages != 2 {
		t.Fatalf("pages = %d", res.Pages)
	}
	var skipped []string
	for _, s := range res.Skipped {
		skipped = append(skipped, fmt.Sprintf("%d:%s:%s", s.Index, s.Name, s.Stage))
	}
	if diff := cmp.Diff([]string{"1:broken.png:decode", "3:missing.png:read"}, skipped); diff != "" {
		t.Fatalf("skipped (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10, 20}, pageHeights(t, parse(t, res.PDF))); diff != "" {
		t.Fatalf("heights (-want +got):\n%s", diff)
	}

	_, err = New(Config{}).Convert(context.Background(), sources)
	var perr *PageError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PageError, got %v", err)
	}
	if perr.Index != 1 || perr.Stage != StageDecode || !errors.Is(err, builder.ErrUnknownFormat) {
		t.Fatalf("unexpected failure %v", perr)
	}
}

func TestConvertErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := New(Config{}).Convert(ctx, nil); !errors.Is(err, merge.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	bad := []Source{BytesSource("x", []byte("x")), BytesSource("y", nil)}
	if _, err := New(Config{AllowPartial: true}).Convert(ctx, bad); !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
	good := []Source{BytesSource("a.png", pngBytes(t, 2, 2, color.White))}
	if _, err := New(Config{Page: builder.PageOptions{Orientation: "sideways"}}).Convert(ctx, good); err == nil {
		t.Fatalf("invalid page options accepted")
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := New(Config{}).Convert(canceled, good); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConvertOptimize(t *testing.T) {
	img := pngBytes(t, 64, 64, color.RGBA{R: 30, G: 60, B: 90, A: 255})
	sources := []Source{BytesSource("a.png", img), BytesSource("b.png", img)}

	plain, err := New(Config{Deterministic: true}).Convert(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	small, err := New(Config{Deterministic: true, Optimize: true}).Convert(context.Background(), sources)
	if err != nil {
		t.Fatal(err)
	}
	if len(small.PDF) >= len(plain.PDF) {
		t.Fatalf("optimized output %d bytes, plain %d", len(small.PDF), len(plain.PDF))
	}
	doc := parse(t, small.PDF)
	// catalog, pages, two pages, one content stream, one image, info
	if len(doc.Objects) != 7 {
		t.Fatalf("optimized document has %d objects", len(doc.Objects))
	}
	if n := len(merge.Pages(doc)); n != 2 {
		t.Fatalf("optimized document has %d pages", n)
	}
}

func TestConvertValidate(t *testing.T) {
	sources := []Source{
		BytesSource("a.png", pngBytes(t, 30, 20, color.White)),
		BytesSource("b.png", pngBytes(t, 20, 30, color.Black)),
		BytesSource("c.png", pngBytes(t, 25, 25, color.Gray{Y: 128})),
	}
	for _, optimized := range []bool{false, true} {
		res, err := New(Config{Validate: true, Optimize: optimized, Title: "check"}).Convert(context.Background(), sources)
		if err != nil {
			t.Fatalf("optimize=%v: %v", optimized, err)
		}
		n, err := validate(res.PDF)
		if err != nil || n != 3 {
			t.Fatalf("optimize=%v: pdfcpu counted %d pages, err %v", optimized, n, err)
		}
	}
}

type recordingTracer struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return observability.NopTracer().StartSpan(ctx, name)
}

func TestConvertSpans(t *testing.T) {
	tr := &recordingTracer{}
	_, err := New(Config{Tracer: tr}).Convert(context.Background(), []Source{
		BytesSource("a.png", pngBytes(t, 2, 2, color.White)),
		BytesSource("b.png", pngBytes(t, 2, 2, color.White)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"convert.render", "convert.merge", "merge.parse", "convert.write"}, tr.names); diff != "" {
		t.Fatalf("spans (-want +got):\n%s", diff)
	}
}
