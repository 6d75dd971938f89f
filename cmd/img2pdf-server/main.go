package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/server"
)

func main() {
	defaultAddr := os.Getenv("IMG2PDF_ADDR")
	if defaultAddr == "" {
		defaultAddr = server.DefaultAddr
	}
	addr := flag.String("addr", defaultAddr, "Listen address (overrides IMG2PDF_ADDR)")
	maxUpload := flag.Int64("max-upload", server.DefaultMaxUploadBytes, "Maximum request body in bytes")
	maxConns := flag.Int("max-conns", server.DefaultMaxConns, "Maximum concurrent connections")
	workers := flag.Int("workers", 0, "Concurrent page renderers per request (0 = number of CPUs)")
	optimize := flag.Bool("optimize", false, "Optimize generated documents")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	level, err := observability.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "img2pdf-server: %v\n", err)
		os.Exit(2)
	}
	logger := observability.NewLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Addr:           *addr,
		MaxUploadBytes: *maxUpload,
		MaxConns:       *maxConns,
		Workers:        *workers,
		Optimize:       *optimize,
		Logger:         logger,
		Tracer:         observability.NewLogTracer(logger),
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", observability.Error("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
