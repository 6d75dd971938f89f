package xref

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/img2pdf/scanner"
)

// Table holds object offsets for a classic xref table.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	Objects() []int
	// TrailerOffset is the offset of the "trailer" keyword, or -1.
	TrailerOffset() int64
	Type() string
}

// ErrNoXRef reports a file without a usable classic cross-reference table.
var ErrNoXRef = errors.New("no cross-reference table")

// Resolve locates the newest classic xref section through startxref and
// follows the /Prev chain of incremental updates. Entries from newer sections
// shadow older ones. Cross-reference streams are not supported and yield
// ErrNoXRef.
func Resolve(data []byte) (Table, error) {
	startxref := bytes.LastIndex(data, []byte("startxref"))
	if startxref < 0 {
		return nil, fmt.Errorf("%w: startxref not found", ErrNoXRef)
	}
	offset, err := readOffset(data[startxref+len("startxref"):])
	if err != nil {
		return nil, err
	}

	entries := make(map[int]entry)
	trailer := int64(-1)
	visited := make(map[int64]bool)
	for offset >= 0 {
		if visited[offset] {
			return nil, fmt.Errorf("%w: /Prev loop at offset %d", ErrNoXRef, offset)
		}
		visited[offset] = true
		section, sectionTrailer, err := readSection(data, offset)
		if err != nil {
			return nil, err
		}
		for num, e := range section {
			if _, newer := entries[num]; !newer {
				entries[num] = e
			}
		}
		if trailer < 0 {
			trailer = sectionTrailer
		}
		offset = prevOffset(data, sectionTrailer)
	}
	return &table{entries: entries, trailer: trailer, kind: "table"}, nil
}

func readOffset(rest []byte) (int64, error) {
	lines := bufio.NewScanner(bytes.NewReader(rest))
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: parse startxref: %v", ErrNoXRef, err)
		}
		return val, nil
	}
	return 0, fmt.Errorf("%w: startxref offset missing", ErrNoXRef)
}

// readSection parses the xref section at offset. Free entries are skipped.
func readSection(data []byte, offset int64) (map[int]entry, int64, error) {
	if offset <= 0 || offset >= int64(len(data)) {
		return nil, 0, fmt.Errorf("%w: offset out of range: %d", ErrNoXRef, offset)
	}
	if !bytes.HasPrefix(data[offset:], []byte("xref")) {
		return nil, 0, fmt.Errorf("%w: xref keyword not found at offset %d", ErrNoXRef, offset)
	}

	entries := make(map[int]entry)
	sc := bufio.NewScanner(bytes.NewReader(data[offset+int64(len("xref")):]))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			trailer := offset + int64(bytes.Index(data[offset:], []byte("trailer")))
			return entries, trailer, nil
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, 0, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, 0, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, 0, fmt.Errorf("parse xref count: %w", err)
		}

		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, 0, errors.New("unexpected end of xref section")
			}
			fields := strings.Fields(sc.Text())
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("invalid xref entry: %q", sc.Text())
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, 0, fmt.Errorf("parse xref gen: %w", err)
			}
			if fields[2] != "n" {
				continue // free entry
			}
			if off <= 0 || off >= int64(len(data)) {
				return nil, 0, fmt.Errorf("xref entry %d: offset %d out of range", startObj+i, off)
			}
			entries[startObj+i] = entry{offset: off, gen: gen}
		}
	}
	return nil, 0, fmt.Errorf("%w: trailer not found after xref", ErrNoXRef)
}

// prevOffset returns the /Prev value of the trailer at offset, or -1.
func prevOffset(data []byte, trailer int64) int64 {
	s := scanner.New(data, scanner.Config{})
	if err := s.Seek(trailer); err != nil {
		return -1
	}
	depth := 0
	for {
		tok, err := s.Next()
		if err != nil {
			return -1
		}
		switch {
		case tok.Type == scanner.TokenDict:
			depth++
		case tok.Type == scanner.TokenKeyword && tok.Str == ">>":
			depth--
			if depth <= 0 {
				return -1
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "startxref":
			return -1
		case depth == 1 && tok.Type == scanner.TokenName && tok.Str == "Prev":
			val, err := s.Next()
			if err != nil || val.Type != scanner.TokenNumber || !val.IsInt {
				return -1
			}
			return val.Int
		}
	}
}

type entry struct {
	offset int64
	gen    int
}

type table struct {
	entries map[int]entry
	trailer int64
	kind    string
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) TrailerOffset() int64 { return t.trailer }
func (t *table) Type() string         { return t.kind }

// Section collects entries for writing a classic xref table.
type Section struct {
	entries map[int]entry
}

func NewSection() *Section { return &Section{entries: make(map[int]entry)} }

// Add records the byte offset of object num.
func (s *Section) Add(num, gen int, offset int64) {
	s.entries[num] = entry{offset: offset, gen: gen}
}

// Size is the trailer /Size value: one more than the highest object number.
func (s *Section) Size() int {
	maxNum := 0
	for num := range s.entries {
		if num > maxNum {
			maxNum = num
		}
	}
	return maxNum + 1
}

// WriteTo writes a single subsection covering objects 0 to Size()-1. Gaps
// are written as free entries.
func (s *Section) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	size := s.Size()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i < size; i++ {
		if e, ok := s.entries[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", e.offset, e.gen)
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
