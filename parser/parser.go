package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/observability"
	"github.com/wudi/img2pdf/recovery"
	"github.com/wudi/img2pdf/scanner"
	"github.com/wudi/img2pdf/xref"
)

var (
	// ErrNotPDF is returned when the %PDF- header is missing.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrNoTrailer is returned when no trailer dictionary can be found.
	ErrNoTrailer = errors.New("trailer not found")
	// ErrNoRoot is returned when the trailer's Root does not name an object.
	ErrNoRoot = errors.New("trailer Root missing or dangling")
	// ErrEncrypted is returned for files carrying an Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted documents are not supported")
	// ErrTooLarge is returned when the input exceeds Config.MaxFileSize.
	ErrTooLarge = errors.New("file exceeds size limit")
)

// Config controls parsing.
type Config struct {
	// Strict disables the full-file scan used when the xref table is broken.
	Strict bool
	// MaxFileSize bounds the input in bytes; 0 means no limit.
	MaxFileSize int64
	// Recovery decides what happens to objects that fail to load. Nil
	// fails the parse.
	Recovery recovery.Strategy
	Scanner  scanner.Config
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document from a classic xref table, falling
// back to a full scan of the file when the table cannot be used.
type DocumentParser struct {
	cfg Config
}

var _ raw.Parser = (*DocumentParser)(nil)

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	data, err := readAll(r, p.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}
	return p.ParseBytes(ctx, data)
}

// ParseBytes parses an in-memory file. The returned document does not alias
// data.
func (p *DocumentParser) ParseBytes(ctx context.Context, data []byte) (*raw.Document, error) {
	if p.cfg.MaxFileSize > 0 && int64(len(data)) > p.cfg.MaxFileSize {
		return nil, ErrTooLarge
	}
	version := detectHeaderVersion(data)
	if version == "" {
		return nil, ErrNotPDF
	}

	table, err := xref.Resolve(data)
	if err != nil {
		if p.cfg.Strict {
			return nil, fmt.Errorf("resolve xref: %w", err)
		}
		p.cfg.Logger.Warn("xref unusable, scanning file", observability.Error("error", err))
		table, err = xref.Repair(data)
		if err != nil {
			return nil, fmt.Errorf("repair xref: %w", err)
		}
	}

	loader := newObjectLoader(data, table, p.cfg.Scanner)
	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Version: version,
	}
	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free head entry
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset, gen, _ := table.Lookup(objNum)
		obj, err := loader.loadAt(objNum, gen, offset)
		if err != nil {
			if p.tolerate(ctx, err, objNum, gen, offset) {
				continue
			}
			return nil, fmt.Errorf("load object %d: %w", objNum, err)
		}
		doc.Objects[raw.ObjectRef{Num: objNum, Gen: gen}] = obj
	}

	trailer, err := loader.loadTrailer(table.TrailerOffset())
	if err != nil {
		return nil, err
	}
	if trailer.GetKey("Encrypt") != nil {
		return nil, ErrEncrypted
	}
	doc.Trailer = trailer

	root, ok := doc.Root()
	if !ok {
		return nil, ErrNoRoot
	}
	if _, ok := doc.Objects[root]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoRoot, root)
	}
	return doc, nil
}

// tolerate reports whether a failed object may be dropped.
func (p *DocumentParser) tolerate(ctx context.Context, err error, num, gen int, offset int64) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	loc := recovery.Location{ByteOffset: offset, ObjectNum: num, ObjectGen: gen, Component: "object"}
	switch p.cfg.Recovery.OnError(ctx, err, loc) {
	case recovery.ActionSkip:
		return true
	case recovery.ActionWarn:
		p.cfg.Logger.Warn("skipping unreadable object", observability.Int("object", num), observability.Error("error", err))
		return true
	}
	return false
}

func detectHeaderVersion(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return ""
	}
	line := string(head[idx+5:])
	for _, sep := range []string{"\r\n", "\n", "\r", " "} {
		if i := strings.Index(line, sep); i >= 0 {
			line = line[:i]
		}
	}
	line = strings.TrimSpace(line)
	if len(line) < 3 || line[1] != '.' {
		return ""
	}
	return line
}

func readAll(r io.ReaderAt, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	tmp := make([]byte, chunk)
	for off := int64(0); ; off += chunk {
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if limit > 0 && int64(buf.Len()) > limit {
			return nil, ErrTooLarge
		}
		if errors.Is(err, io.EOF) || (err == nil && int64(n) < chunk) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
