package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/xref"
)

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if err := serializePrimitive(&buf, obj); err != nil {
		return nil, fmt.Errorf("object %v: %w", ref, err)
	}
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	root, ok := doc.Root()
	if !ok {
		return ErrNoRoot
	}
	if _, ok := doc.Objects[root]; !ok {
		return fmt.Errorf("%w: %v not in object table", ErrNoRoot, root)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + pdfVersion(doc, cfg) + "\n%\xE2\xE3\xCF\xD3\n")

	sec := xref.NewSection()
	for i, ref := range doc.SortedRefs() {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		obj := doc.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		offset := int64(buf.Len())
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		buf.Write(serialized)
		sec.Add(ref.Num, ref.Gen, offset)
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, int64(len(serialized))); err != nil {
				return err
			}
		}
	}

	xrefOffset := buf.Len()
	if _, err := sec.WriteTo(&buf); err != nil {
		return err
	}
	var ids *[2][]byte
	if !cfg.OmitID {
		id := fileID(buf.Bytes(), cfg)
		ids = &id
	}
	buf.WriteString("trailer\n")
	if err := serializePrimitive(&buf, buildTrailer(doc.Trailer, sec.Size(), ids)); err != nil {
		return fmt.Errorf("trailer: %w", err)
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}
