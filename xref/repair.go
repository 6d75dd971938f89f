package xref

import (
	"errors"
	"io"

	"github.com/wudi/img2pdf/scanner"
)

// Repair scans the entire file to reconstruct the xref table. It looks for
// "<num> <gen> obj" patterns and the last "trailer" keyword; later
// definitions of an object number win, as they would in an incremental update.
func Repair(data []byte) (Table, error) {
	s := scanner.New(data, scanner.Config{})
	entries := make(map[int]entry)
	trailer := int64(-1)

	for {
		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			tokGen, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				continue
			}
			if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				if err := s.Seek(tokGen.Pos); err != nil {
					return nil, err
				}
				continue
			}
			tokObj, err := s.Next()
			if err == nil && tokObj.Type == scanner.TokenKeyword && tokObj.Str == "obj" {
				entries[int(tok.Int)] = entry{offset: tok.Pos, gen: int(tokGen.Int)}
				continue
			}
			// tokGen could start the next object header ("1 2 0 obj").
			if err := s.Seek(tokGen.Pos); err != nil {
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			trailer = tok.Pos
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair: no objects found")
	}
	return &table{entries: entries, trailer: trailer, kind: "repaired"}, nil
}
