package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/term"

	"github.com/wudi/img2pdf/builder"
	"github.com/wudi/img2pdf/convert"
	"github.com/wudi/img2pdf/observability"
)

type options struct {
	images   []string
	output   string
	page     builder.PageOptions
	workers  int
	title    string
	strict   bool
	optimize bool
	validate bool
	verbose  bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "img2pdf: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "img2pdf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: img2pdf [flags] <image>...\n")
		flag.PrintDefaults()
	}
	output := flag.String("o", "merged.pdf", "Output PDF path")
	orientation := flag.String("orientation", "portrait", "Page orientation: portrait, landscape or auto")
	margin := flag.String("margin", "none", "Margin: none, small, medium, large or points")
	pageSize := flag.String("page-size", "image", "Page size: image, a4 or letter")
	dpi := flag.Float64("dpi", builder.DefaultDPI, "Resolution used to size image pages")
	jpegPassthrough := flag.Bool("jpeg", false, "Embed JPEG files without re-encoding")
	workers := flag.Int("workers", 0, "Concurrent page renderers (0 = number of CPUs)")
	title := flag.String("title", "", "Document title")
	strict := flag.Bool("strict", false, "Fail when any image cannot be converted")
	optimize := flag.Bool("optimize", false, "Drop unused objects and combine duplicates")
	validate := flag.Bool("validate", false, "Validate the output with pdfcpu")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return options{}, fmt.Errorf("no images given")
	}
	o, err := builder.ParseOrientation(*orientation)
	if err != nil {
		return options{}, err
	}
	m, err := builder.ParseMargin(*margin)
	if err != nil {
		return options{}, err
	}
	ps, err := builder.ParsePageSize(*pageSize)
	if err != nil {
		return options{}, err
	}

	opts.images = flag.Args()
	opts.output = *output
	opts.page = builder.PageOptions{
		PageSize:        ps,
		Orientation:     o,
		Margin:          m,
		DPI:             *dpi,
		PassthroughJPEG: *jpegPassthrough,
	}
	opts.workers = *workers
	opts.title = *title
	opts.strict = *strict
	opts.optimize = *optimize
	opts.validate = *validate
	opts.verbose = *verbose
	return opts, opts.page.Validate()
}

func run(ctx context.Context, opts options) error {
	level := observability.LevelWarn
	if opts.verbose {
		level = observability.LevelDebug
	}
	logger := observability.NewLogger(os.Stderr, level)

	sources := make([]convert.Source, len(opts.images))
	for i, path := range opts.images {
		sources[i] = convert.FileSource(path)
	}

	cfg := convert.Config{
		Page:         opts.page,
		Workers:      opts.workers,
		AllowPartial: !opts.strict,
		Title:        opts.title,
		Optimize:     opts.optimize,
		Validate:     opts.validate,
		Logger:       logger,
	}
	if opts.verbose {
		cfg.Tracer = observability.NewLogTracer(logger)
	}
	interactive := term.IsTerminal(int(os.Stderr.Fd()))
	if interactive {
		var mu sync.Mutex
		cfg.Progress = func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(os.Stderr, "\rRendering %d/%d", done, total)
		}
	}

	res, err := convert.New(cfg).Convert(ctx, sources)
	if interactive {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	for _, skipped := range res.Skipped {
		fmt.Fprintf(os.Stderr, "warning: %v\n", skipped)
	}
	if err := os.WriteFile(opts.output, res.PDF, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	fmt.Printf("PDF created with %d pages: %s\n", res.Pages, opts.output)
	return nil
}
