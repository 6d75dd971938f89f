package merge

import (
	"bytes"
	"context"
	"time"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/writer"
)

// Engine merges serialized documents: parse, merge, serialize.
type Engine struct {
	parser    raw.Parser
	writer    writer.Writer
	writerCfg writer.Config
	logger    observability.Logger
	tracer    observability.Tracer
}

type Option func(*Engine)

// WithWriterConfig sets the config used to serialize merged documents.
func WithWriterConfig(cfg writer.Config) Option {
	return func(e *Engine) { e.writerCfg = cfg }
}

func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer records a span around parsing.
func WithTracer(t observability.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func NewEngine(p raw.Parser, w writer.Writer, opts ...Option) *Engine {
	e := &Engine{parser: p, writer: w, logger: observability.NopLogger{}, tracer: observability.NopTracer()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MergeBytes parses every input in order, stopping at the first failure,
// and returns the merged file. A single valid input is returned unchanged.
func (e *Engine) MergeBytes(ctx context.Context, inputs [][]byte) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}
	docs, err := e.parseAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 1 {
		return inputs[0], nil
	}
	return e.MergeDocuments(ctx, docs)
}

// Assemble parses and merges inputs without serializing, so callers can
// amend the merged document first. One input yields its parsed document.
func (e *Engine) Assemble(ctx context.Context, inputs [][]byte) (*raw.Document, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}
	docs, err := e.parseAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return Merge(docs)
}

func (e *Engine) parseAll(ctx context.Context, inputs [][]byte) ([]*raw.Document, error) {
	ctx, span := e.tracer.StartSpan(ctx, "merge.parse")
	defer span.Finish()
	start := time.Now()

	docs := make([]*raw.Document, len(inputs))
	for i, in := range inputs {
		doc, err := e.parser.Parse(ctx, bytes.NewReader(in))
		if err != nil {
			err = &ParseError{Index: i, Err: err}
			span.SetError(err)
			return nil, err
		}
		docs[i] = doc
	}
	span.SetTag(observability.MetricParseTime, time.Since(start))
	return docs, nil
}

// MergeDocuments merges docs and serializes the result.
func (e *Engine) MergeDocuments(ctx context.Context, docs []*raw.Document) ([]byte, error) {
	merged, err := Merge(docs)
	if err != nil {
		return nil, err
	}
	out, err := e.Serialize(ctx, merged)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("documents merged",
		observability.Int("inputs", len(docs)),
		observability.Int("objects", len(merged.Objects)),
		observability.Int("bytes", len(out)))
	return out, nil
}

// Serialize writes doc with the engine's writer. Failures are reported as
// *SerializationError.
func (e *Engine) Serialize(ctx context.Context, doc *raw.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.writer.Write(ctx, doc, &buf, e.writerCfg); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return buf.Bytes(), nil
}
