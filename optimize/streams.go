package optimize

import (
	"compress/flate"
	"context"

	"github.com/wudi/img2pdf/filters"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/observability"
)

// DefaultMaxDecodedSize bounds the decoded size of a stream that is
// re-encoded during compression.
const DefaultMaxDecodedSize = 256 << 20

// recodable lists lossless filters that decode without DecodeParms.
var recodable = map[string]bool{
	"ASCIIHexDecode": true,
	"ASCII85Decode":  true,
	"FlateDecode":    true,
}

// compressStreams Flate-encodes streams that carry no filter, and re-encodes
// streams whose filters are ASCII encodings, optionally over Flate. Streams
// whose encoded form is not smaller are left alone.
func (o *Optimizer) compressStreams(ctx context.Context, doc *raw.Document) (int, error) {
	enc := filters.NewFlateEncoder(flate.BestCompression)
	limits := o.config.DecodeLimits
	if limits.MaxDecompressedSize <= 0 {
		limits.MaxDecompressedSize = DefaultMaxDecodedSize
	}
	pipe := filters.NewDefaultPipeline(limits)
	compressed := 0
	for _, ref := range doc.SortedRefs() {
		if err := ctx.Err(); err != nil {
			return compressed, err
		}
		s, ok := doc.Objects[ref].(*raw.StreamObj)
		if !ok || len(s.Data) == 0 {
			continue
		}
		if s.Dict == nil {
			s.Dict = raw.Dict()
		}
		plain, ok := o.plainData(ctx, pipe, ref, s)
		if !ok {
			continue
		}
		data, err := enc.Encode(plain)
		if err != nil {
			return compressed, err
		}
		if len(data) >= len(s.Data) {
			continue
		}
		s.Data = data
		s.Dict.SetKey("Filter", raw.NameLiteral(enc.Name()))
		s.Dict.SetKey("Length", raw.NumberInt(int64(len(data))))
		s.Dict.Delete("DecodeParms")
		compressed++
	}
	return compressed, nil
}

// plainData returns the decoded content of s when it is worth re-encoding:
// unfiltered data as is, or data whose filter chain is recodable and not
// already plain Flate.
func (o *Optimizer) plainData(ctx context.Context, pipe *filters.Pipeline, ref raw.ObjectRef, s *raw.StreamObj) ([]byte, bool) {
	names, params := filters.ExtractFilters(s.Dict)
	if len(names) == 0 {
		return s.Data, s.Dict.GetKey("Filter") == nil
	}
	if len(names) == 1 && names[0] == "FlateDecode" {
		return nil, false
	}
	for i, name := range names {
		if !recodable[name] || (i < len(params) && params[i] != nil) {
			return nil, false
		}
	}
	data, err := pipe.Decode(ctx, s.Data, names, params)
	if err != nil {
		o.config.Logger.Debug("stream left encoded",
			observability.Int("object", ref.Num),
			observability.Error("error", err))
		return nil, false
	}
	return data, true
}
