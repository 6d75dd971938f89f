// Package convert turns a list of images into one PDF: every image is
// rendered to its own page document in a worker pool, then the pages are
// merged in input order and serialized.
package convert

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wudi/img2pdf/builder"
	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/merge"
	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/optimize"
	"github.com/wudi/img2pdf/parser"
	"github.com/wudi/img2pdf/writer"
)

type Config struct {
	Page builder.PageOptions
	// Workers bounds concurrent page rendering; 0 means GOMAXPROCS.
	Workers int
	// AllowPartial drops images that fail instead of failing the whole
	// conversion.
	AllowPartial bool
	Title        string
	Producer     string
	// Optimize removes the page trees left over from merging, combines
	// identical objects and compresses content streams.
	Optimize bool
	// Validate runs pdfcpu over the result.
	Validate bool
	// Deterministic fixes the file identifier and the creation date so equal
	// input gives equal output.
	Deterministic bool
	// Progress, if set, is called after every page with the number of
	// finished pages. It may be called from several goroutines.
	Progress func(done, total int)
	Logger   observability.Logger
	Tracer   observability.Tracer
	Now      func() time.Time
}

// Result is a finished conversion.
type Result struct {
	PDF     []byte
	Pages   int
	Skipped []*PageError
}

type Converter struct {
	cfg    Config
	engine *merge.Engine
}

func New(cfg Config) *Converter {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Producer == "" {
		cfg.Producer = DefaultProducer
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	engine := merge.NewEngine(
		parser.NewDocumentParser(parser.Config{Strict: true, Logger: cfg.Logger}),
		(&writer.WriterBuilder{}).Build(),
		merge.WithWriterConfig(writer.Config{Deterministic: cfg.Deterministic}),
		merge.WithLogger(cfg.Logger),
		merge.WithTracer(cfg.Tracer),
	)
	return &Converter{cfg: cfg, engine: engine}
}

// Convert renders sources and merges them into one document. Page order
// equals input order.
func (c *Converter) Convert(ctx context.Context, sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, merge.ErrEmptyInput
	}
	if err := c.cfg.Page.Validate(); err != nil {
		return nil, err
	}

	pages, failures, err := c.render(ctx, sources)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	inputs := make([][]byte, 0, len(pages))
	for i, p := range pages {
		if failures[i] == nil {
			inputs = append(inputs, p)
			continue
		}
		if !c.cfg.AllowPartial {
			return nil, failures[i]
		}
		c.cfg.Logger.Warn("skipping image",
			observability.Int("index", i),
			observability.String("name", failures[i].Name),
			observability.String("stage", failures[i].Stage),
			observability.Error("error", failures[i].Err))
		res.Skipped = append(res.Skipped, failures[i])
	}
	if len(inputs) == 0 {
		return nil, ErrNoPages
	}

	doc, err := c.assemble(ctx, inputs)
	if err != nil {
		return nil, err
	}

	created := c.cfg.Now()
	if c.cfg.Deterministic {
		created = time.Unix(0, 0)
	}
	addInfo(doc, c.cfg.Title, c.cfg.Producer, created)

	if c.cfg.Optimize {
		opt := optimize.New(optimize.Config{
			RemoveUnreachable:               true,
			CombineIdenticalIndirectObjects: true,
			CompressStreams:                 true,
			Logger:                          c.cfg.Logger,
		})
		if _, err := opt.Optimize(ctx, doc); err != nil {
			return nil, err
		}
	}

	out, err := c.write(ctx, doc)
	if err != nil {
		return nil, err
	}
	res.PDF = out
	res.Pages = len(inputs)

	if c.cfg.Validate {
		n, err := validate(out)
		if err != nil {
			return nil, &ValidationError{Err: err}
		}
		if n != res.Pages {
			return nil, &ValidationError{Err: fmt.Errorf("validator counted %d pages, expected %d", n, res.Pages)}
		}
	}

	c.cfg.Logger.Info("conversion finished",
		observability.Int("pages", res.Pages),
		observability.Int("skipped", len(res.Skipped)),
		observability.Int("bytes", len(out)))
	return res, nil
}

// render runs one task per source through a fixed number of workers. Each
// result lands at its source's index. The returned error is set only when ctx
// ends; per-image failures are reported in failures.
func (c *Converter) render(ctx context.Context, sources []Source) ([][]byte, []*PageError, error) {
	ctx, span := c.cfg.Tracer.StartSpan(ctx, "convert.render")
	defer span.Finish()
	start := time.Now()

	pages := make([][]byte, len(sources))
	failures := make([]*PageError, len(sources))
	sem := make(chan struct{}, c.cfg.Workers)
	var done atomic.Int64

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}

			pages[i], failures[i] = c.renderOne(ctx, i, src)
			if c.cfg.Progress != nil {
				c.cfg.Progress(int(done.Add(1)), len(sources))
			}
		}(i, src)
	}
	wg.Wait()

	span.SetTag(observability.MetricRenderTime, time.Since(start))
	if err := ctx.Err(); err != nil {
		span.SetError(err)
		return nil, nil, err
	}
	skipped := 0
	for _, f := range failures {
		if f != nil {
			skipped++
		}
	}
	span.SetTag(observability.MetricPageCount, len(sources)-skipped)
	span.SetTag(observability.MetricSkippedPages, skipped)
	return pages, failures, nil
}

func (c *Converter) renderOne(ctx context.Context, i int, src Source) ([]byte, *PageError) {
	fail := func(stage string, err error) ([]byte, *PageError) {
		return nil, &PageError{Index: i, Name: src.Name, Stage: stage, Err: err}
	}
	data, err := src.read()
	if err != nil {
		return fail(StageRead, err)
	}
	img, err := builder.Decode(data)
	if err != nil {
		return fail(StageDecode, err)
	}
	page, err := builder.RenderPageBytes(ctx, img, c.cfg.Page)
	if err != nil {
		return fail(StageRender, err)
	}
	c.cfg.Logger.Debug("page rendered",
		observability.Int("index", i),
		observability.String("name", src.Name),
		observability.String("format", img.Format),
		observability.Int("bytes", len(page)))
	return page, nil
}

func (c *Converter) assemble(ctx context.Context, inputs [][]byte) (*raw.Document, error) {
	ctx, span := c.cfg.Tracer.StartSpan(ctx, "convert.merge")
	defer span.Finish()
	start := time.Now()

	doc, err := c.engine.Assemble(ctx, inputs)
	span.SetTag(observability.MetricMergeTime, time.Since(start))
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag(observability.MetricObjectCount, len(doc.Objects))
	return doc, nil
}

func (c *Converter) write(ctx context.Context, doc *raw.Document) ([]byte, error) {
	ctx, span := c.cfg.Tracer.StartSpan(ctx, "convert.write")
	defer span.Finish()
	start := time.Now()

	out, err := c.engine.Serialize(ctx, doc)
	span.SetTag(observability.MetricWriteTime, time.Since(start))
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag(observability.MetricOutputBytes, len(out))
	return out, nil
}
