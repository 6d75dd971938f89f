package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/merge"
	"github.com/wudi/img2pdf/parser"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type part struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, parts []part, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(p.data)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(New(Config{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestConvert(t *testing.T) {
	req := multipartRequest(t, []part{
		{"images", "a.png", pngBytes(t, 100, 100)},
		{"images", "b.png", pngBytes(t, 50, 80)},
	}, map[string]string{"orientation": "auto", "margin": "none"})
	rec := serve(New(Config{}), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Content-Type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="merged.pdf"` {
		t.Fatalf("Content-Disposition %q", cd)
	}
	doc, err := parser.NewDocumentParser(parser.Config{Strict: true}).ParseBytes(context.Background(), rec.Body.Bytes())
	if err != nil {
		t.Fatalf("response is not a PDF: %v", err)
	}
	pages := merge.Pages(doc)
	if len(pages) != 2 {
		t.Fatalf("got %d pages", len(pages))
	}
	box, _ := doc.Objects[pages[1].Ref].(*raw.DictObj).Array("MediaBox")
	if w := box.Items[2].(raw.NumberObj).Float(); w != 37.5 {
		t.Fatalf("second page width %v, want 37.5", w)
	}
}

func TestConvertRejects(t *testing.T) {
	img := pngBytes(t, 4, 4)
	tests := []struct {
		name   string
		req    *http.Request
		status int
		body   string
	}{
		{
			name:   "no images",
			req:    multipartRequest(t, []part{{"file", "a.png", img}}, nil),
			status: http.StatusBadRequest,
			body:   "No images provided. Send files with field name 'images'",
		},
		{
			name:   "broken image",
			req:    multipartRequest(t, []part{{"images", "a.png", img}, {"images", "b.png", []byte("garbage")}}, nil),
			status: http.StatusBadRequest,
			body:   "Failed to load image #2:",
		},
		{
			name:   "bad orientation",
			req:    multipartRequest(t, []part{{"images", "a.png", img}}, map[string]string{"orientation": "upside"}),
			status: http.StatusBadRequest,
			body:   "Invalid options:",
		},
		{
			name:   "bad margin",
			req:    multipartRequest(t, []part{{"images", "a.png", img}}, map[string]string{"margin": "wide"}),
			status: http.StatusBadRequest,
			body:   "Invalid options:",
		},
		{
			name:   "not multipart",
			req:    httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader("x")),
			status: http.StatusBadRequest,
			body:   "Invalid multipart request",
		},
		{
			name:   "wrong method",
			req:    httptest.NewRequest(http.MethodGet, "/api/convert", nil),
			status: http.StatusMethodNotAllowed,
		},
	}
	s := New(Config{})
	for _, tt := range tests {
		rec := serve(s, tt.req)
		if rec.Code != tt.status {
			t.Errorf("%s: status %d, want %d (%s)", tt.name, rec.Code, tt.status, rec.Body.String())
			continue
		}
		if !strings.HasPrefix(rec.Body.String(), tt.body) {
			t.Errorf("%s: body %q, want prefix %q", tt.name, rec.Body.String(), tt.body)
		}
	}
}

func TestConvertTooLarge(t *testing.T) {
	s := New(Config{MaxUploadBytes: 1024})
	req := multipartRequest(t, []part{{"images", "big.bin", bytes.Repeat([]byte{'x'}, 4096)}}, nil)
	rec := serve(s, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- New(Config{MaxConns: 2}).Serve(ctx, ln) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Fatalf("health body %q", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("server did not stop")
	}
}
