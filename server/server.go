// Package server exposes image conversion over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/netutil"

	"github.com/wudi/img2pdf/builder"
	"github.com/wudi/img2pdf/convert"
	"github.com/wudi/img2pdf/observability"
)

const (
	DefaultAddr           = ":3000"
	DefaultMaxUploadBytes = 64 << 20
	DefaultMaxConns       = 64
	// FieldImages is the multipart field carrying the images.
	FieldImages = "images"
)

type Config struct {
	Addr           string
	MaxUploadBytes int64
	// MaxMemory is the part of an upload kept in memory; the rest spills to
	// temporary files.
	MaxMemory int64
	MaxConns  int
	Workers   int
	Page      builder.PageOptions
	Optimize  bool
	Logger    observability.Logger
	Tracer    observability.Tracer
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.MaxMemory <= 0 {
		c.MaxMemory = 32 << 20
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	if c.Tracer == nil {
		c.Tracer = observability.NopTracer()
	}
	return c
}

type Server struct {
	cfg     Config
	handler http.Handler
}

func New(cfg Config) *Server {
	s := &Server{cfg: cfg.withDefaults()}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/convert", s.handleConvert)
	s.handler = s.logRequests(mux)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts at most MaxConns concurrent connections on ln. When ctx is
// done the server stops accepting and waits up to ten seconds for active
// requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	s.cfg.Logger.Info("server listening",
		observability.String("addr", ln.Addr().String()),
		observability.Int("max_conns", s.cfg.MaxConns))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "OK")
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxMemory); err != nil {
		if tooLarge(err) {
			s.fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", s.cfg.MaxUploadBytes), err)
			return
		}
		s.fail(w, http.StatusBadRequest, "Invalid multipart request: "+err.Error(), err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[FieldImages]
	if len(files) == 0 {
		s.fail(w, http.StatusBadRequest, "No images provided. Send files with field name 'images'", nil)
		return
	}
	page, title, err := s.pageOptions(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid options: "+err.Error(), err)
		return
	}

	sources := make([]convert.Source, len(files))
	for i, fh := range files {
		sources[i] = fileHeaderSource(fh)
	}
	s.cfg.Logger.Info("convert request",
		observability.Int("images", len(files)),
		observability.String("page_size", string(page.PageSize)))

	conv := convert.New(convert.Config{
		Page:     page,
		Workers:  s.cfg.Workers,
		Title:    title,
		Optimize: s.cfg.Optimize,
		Logger:   s.cfg.Logger,
		Tracer:   s.cfg.Tracer,
	})
	res, err := conv.Convert(r.Context(), sources)
	if err != nil {
		var perr *convert.PageError
		if errors.As(err, &perr) {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("Failed to load image #%d: %v", perr.Index+1, perr.Err), err)
			return
		}
		s.fail(w, http.StatusInternalServerError, "Failed to generate PDF: "+err.Error(), err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="merged.pdf"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(res.PDF)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.PDF)
}

// pageOptions overlays the request's form fields on the configured page
// options.
func (s *Server) pageOptions(r *http.Request) (builder.PageOptions, string, error) {
	page := s.cfg.Page
	if v := r.FormValue("orientation"); v != "" {
		o, err := builder.ParseOrientation(v)
		if err != nil {
			return page, "", err
		}
		page.Orientation = o
	}
	if v := r.FormValue("margin"); v != "" {
		m, err := builder.ParseMargin(v)
		if err != nil {
			return page, "", err
		}
		page.Margin = m
	}
	if v := r.FormValue("page_size"); v != "" {
		p, err := builder.ParsePageSize(v)
		if err != nil {
			return page, "", err
		}
		page.PageSize = p
	}
	if err := page.Validate(); err != nil {
		return page, "", err
	}
	return page, strings.TrimSpace(r.FormValue("title")), nil
}

func fileHeaderSource(fh *multipart.FileHeader) convert.Source {
	return convert.Source{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	fields := []observability.Field{observability.Int("status", status), observability.String("message", msg)}
	if err != nil {
		fields = append(fields, observability.Error("error", err))
	}
	if status >= http.StatusInternalServerError {
		s.cfg.Logger.Error("request failed", fields...)
	} else {
		s.cfg.Logger.Warn("request rejected", fields...)
	}
	http.Error(w, msg, status)
}
