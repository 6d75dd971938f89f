package writer

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/img2pdf/ir/raw"
)

// PDF17 is written when neither the document nor the config names a version.
const PDF17 = "1.7"

// ErrNoRoot is returned for documents whose trailer does not name a catalog.
var ErrNoRoot = errors.New("document has no Root")

type Config struct {
	// Version overrides the document's header version when set.
	Version string
	// Deterministic derives both /ID strings from the written body, so equal
	// documents produce equal files.
	Deterministic bool
	// OmitID skips the trailer /ID array.
	OmitID bool
}

// Writer serializes a raw document as a classic PDF file: header, every
// object of the table in ascending order, one xref section and a trailer.
type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes each indirect object as it is written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }
