// Package optimize shrinks a raw document in place before it is written.
package optimize

import (
	"context"
	"fmt"

	"github.com/wudi/img2pdf/filters"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/observability"
)

type Config struct {
	// RemoveUnreachable drops objects that cannot be reached from the
	// trailer, such as the page trees left behind by a merge.
	RemoveUnreachable bool
	// CombineIdenticalIndirectObjects keeps one copy of objects that are
	// equal after serialization and points every reference at it.
	CombineIdenticalIndirectObjects bool
	// CompressStreams Flate-encodes unfiltered streams, and streams that
	// only carry ASCIIHex or ASCII85 encodings, when that makes them smaller.
	CompressStreams bool
	// DecodeLimits bounds stream decoding during compression. A zero
	// MaxDecompressedSize selects DefaultMaxDecodedSize.
	DecodeLimits filters.Limits
	Logger       observability.Logger
}

// Report counts what a pass changed.
type Report struct {
	Removed    int
	Combined   int
	Compressed int
}

type Optimizer struct {
	config Config
}

func New(config Config) *Optimizer {
	if config.Logger == nil {
		config.Logger = observability.NopLogger{}
	}
	return &Optimizer{config: config}
}

func (o *Optimizer) Optimize(ctx context.Context, doc *raw.Document) (Report, error) {
	var rep Report
	if doc == nil {
		return rep, nil
	}
	if o.config.RemoveUnreachable {
		rep.Removed += o.removeUnreachable(doc)
	}

	if o.config.CombineIdenticalIndirectObjects {
		n, err := o.combineObjects(ctx, doc)
		if err != nil {
			return rep, fmt.Errorf("failed to combine identical indirect objects: %w", err)
		}
		rep.Combined = n
		if o.config.RemoveUnreachable {
			rep.Removed += o.removeUnreachable(doc)
		}
	}

	if o.config.CompressStreams {
		n, err := o.compressStreams(ctx, doc)
		if err != nil {
			return rep, fmt.Errorf("failed to compress streams: %w", err)
		}
		rep.Compressed = n
	}

	o.config.Logger.Debug("document optimized",
		observability.Int("removed", rep.Removed),
		observability.Int("combined", rep.Combined),
		observability.Int("compressed", rep.Compressed),
		observability.Int("objects", len(doc.Objects)))
	return rep, nil
}
