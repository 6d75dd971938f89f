package builder

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/wudi/img2pdf/filters"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/writer"
)

// Object numbers of a rendered page document.
var (
	catalogRef = raw.ObjectRef{Num: 1}
	pagesRef   = raw.ObjectRef{Num: 2}
	pageRef    = raw.ObjectRef{Num: 3}
	contentRef = raw.ObjectRef{Num: 4}
	imageRef   = raw.ObjectRef{Num: 5}
)

// Layout is the placement of an image on its page, in points.
type Layout struct {
	PageWidth, PageHeight float64
	X, Y, Width, Height   float64
}

// ComputeLayout places a w x h pixel image according to opts.
func ComputeLayout(w, h int, opts PageOptions) Layout {
	opts = opts.withDefaults()
	imgW := float64(w) * 72 / opts.DPI
	imgH := float64(h) * 72 / opts.DPI
	m := opts.Margin

	var pw, ph float64
	if size, ok := paperSizes[opts.PageSize]; ok {
		pw, ph = size[0], size[1]
	} else {
		pw, ph = imgW+2*m, imgH+2*m
	}

	switch opts.Orientation {
	case Portrait:
		if pw > ph {
			pw, ph = ph, pw
		}
	case Landscape:
		if ph > pw {
			pw, ph = ph, pw
		}
	case Auto:
		if (imgW > imgH) != (pw > ph) && pw != ph {
			pw, ph = ph, pw
		}
	}

	boxW, boxH := math.Max(pw-2*m, 0), math.Max(ph-2*m, 0)
	scale := math.Min(boxW/imgW, boxH/imgH)
	if opts.PageSize == SizeImage && scale > 1 {
		scale = 1
	}
	dw, dh := imgW*scale, imgH*scale
	return Layout{
		PageWidth:  pw,
		PageHeight: ph,
		X:          (pw - dw) / 2,
		Y:          (ph - dh) / 2,
		Width:      dw,
		Height:     dh,
	}
}

// RenderPage produces a one-page document showing img.
func RenderPage(ctx context.Context, img *Image, opts PageOptions) (*raw.Document, error) {
	if img == nil || img.Image == nil {
		return nil, fmt.Errorf("render page: no image")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	b := img.Bounds()
	if err := filters.ValidateImageBounds(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layout := ComputeLayout(b.Dx(), b.Dy(), opts)
	xobj, err := imageXObject(img, opts)
	if err != nil {
		return nil, err
	}

	doc := raw.NewDocument(writer.PDF17)

	catalog := raw.Dict()
	catalog.SetKey("Type", raw.NameLiteral("Catalog"))
	catalog.SetKey("Pages", raw.RefTo(pagesRef))
	doc.Objects[catalogRef] = catalog

	pages := raw.Dict()
	pages.SetKey("Type", raw.NameLiteral("Pages"))
	pages.SetKey("Kids", raw.NewArray(raw.RefTo(pageRef)))
	pages.SetKey("Count", raw.NumberInt(1))
	doc.Objects[pagesRef] = pages

	xobjects := raw.Dict()
	xobjects.SetKey("Im0", raw.RefTo(imageRef))
	resources := raw.Dict()
	resources.SetKey("XObject", xobjects)
	resources.SetKey("ProcSet", raw.NewArray(raw.NameLiteral("PDF"), raw.NameLiteral("ImageC")))

	page := raw.Dict()
	page.SetKey("Type", raw.NameLiteral("Page"))
	page.SetKey("Parent", raw.RefTo(pagesRef))
	page.SetKey("MediaBox", raw.Rect(0, 0, round(layout.PageWidth), round(layout.PageHeight)))
	page.SetKey("Resources", resources)
	page.SetKey("Contents", raw.RefTo(contentRef))
	doc.Objects[pageRef] = page

	doc.Objects[contentRef] = raw.NewStream(raw.Dict(), contentStream(layout))
	doc.Objects[imageRef] = xobj
	doc.Trailer.SetKey("Root", raw.RefTo(catalogRef))
	return doc, nil
}

// RenderPageBytes renders img and serializes the page document.
func RenderPageBytes(ctx context.Context, img *Image, opts PageOptions) ([]byte, error) {
	doc, err := RenderPage(ctx, img, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := (&writer.WriterBuilder{}).Build().Write(ctx, doc, &buf, writer.Config{Deterministic: true}); err != nil {
		return nil, fmt.Errorf("serialize page: %w", err)
	}
	return buf.Bytes(), nil
}

func contentStream(l Layout) []byte {
	return []byte("q " + num(l.Width) + " 0 0 " + num(l.Height) + " " + num(l.X) + " " + num(l.Y) + " cm /Im0 Do Q\n")
}

func imageXObject(img *Image, opts PageOptions) (*raw.StreamObj, error) {
	b := img.Bounds()
	w, h := fitPixels(b.Dx(), b.Dy(), opts.MaxPixels)

	dict := raw.Dict()
	dict.SetKey("Type", raw.NameLiteral("XObject"))
	dict.SetKey("Subtype", raw.NameLiteral("Image"))
	dict.SetKey("Width", raw.NumberInt(int64(w)))
	dict.SetKey("Height", raw.NumberInt(int64(h)))
	dict.SetKey("BitsPerComponent", raw.NumberInt(8))
	dict.SetKey("Interpolate", raw.Bool(true))

	if opts.PassthroughJPEG && img.Format == "jpeg" && w == b.Dx() && h == b.Dy() {
		if cs, ok := jpegColorSpace(img.Data); ok {
			dict.SetKey("ColorSpace", raw.NameLiteral(cs))
			dict.SetKey("Filter", raw.NameLiteral("DCTDecode"))
			data := append([]byte(nil), img.Data...)
			return raw.NewStream(dict, data), nil
		}
	}

	enc := filters.NewFlateEncoder(opts.Compression)
	data, err := enc.Encode(flatten(img.Image, w, h, opts.Background))
	if err != nil {
		return nil, fmt.Errorf("compress image: %w", err)
	}
	dict.SetKey("ColorSpace", raw.NameLiteral("DeviceRGB"))
	dict.SetKey("Filter", raw.NameLiteral(enc.Name()))
	return raw.NewStream(dict, data), nil
}

func round(v float64) float64 { return math.Round(v*100) / 100 }

func num(v float64) string { return strconv.FormatFloat(round(v), 'f', -1, 64) }
