package parser

import (
	"errors"
	"fmt"

	"github.com/wudi/img2pdf/ir/raw"
	"github.com/wudi/img2pdf/scanner"
	"github.com/wudi/img2pdf/xref"
)

// maxNesting bounds array/dictionary nesting inside one object.
const maxNesting = 256

type objectLoader struct {
	data  []byte
	table xref.Table
	cfg   scanner.Config
	// lengths caches indirect /Length values; -1 marks a lookup in progress.
	lengths map[int]int64
}

func newObjectLoader(data []byte, table xref.Table, cfg scanner.Config) *objectLoader {
	return &objectLoader{data: data, table: table, cfg: cfg, lengths: make(map[int]int64)}
}

func (o *objectLoader) loadAt(objNum, gen int, offset int64) (raw.Object, error) {
	s := scanner.New(o.data, o.cfg)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tr := newTokenReader(s)

	// Expect "<objNum> <gen> obj"
	tokNum, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokNum.Type != scanner.TokenNumber || !tokNum.IsInt || int(tokNum.Int) != objNum {
		return nil, errors.New("object header number mismatch")
	}
	tokGen, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt || int(tokGen.Int) != gen {
		return nil, errors.New("object header generation mismatch")
	}
	tokObj, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokObj.Type != scanner.TokenKeyword || tokObj.Str != "obj" {
		return nil, errors.New("expected obj keyword")
	}

	obj, err := parseObject(tr, 0)
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(*raw.DictObj); ok {
		s.SetNextStreamLength(o.streamLength(dict))
		streamTok, err := tr.next()
		switch {
		case err == nil && streamTok.Type == scanner.TokenStream:
			obj = raw.NewStream(dict, streamTok.Bytes)
		case err == nil:
			tr.unread(streamTok)
		case !errors.Is(err, scanner.ErrSyntax):
			// EOF right after the dictionary is tolerated.
		default:
			return nil, err
		}
	}
	return obj, nil
}

// loadTrailer parses the dictionary following the "trailer" keyword.
func (o *objectLoader) loadTrailer(offset int64) (*raw.DictObj, error) {
	if offset < 0 {
		return nil, ErrNoTrailer
	}
	s := scanner.New(o.data, o.cfg)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tr := newTokenReader(s)
	tok, err := tr.next()
	if err != nil || tok.Type != scanner.TokenKeyword || tok.Str != "trailer" {
		return nil, ErrNoTrailer
	}
	obj, err := parseObject(tr, 0)
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("%w: trailer is a %s", ErrNoTrailer, obj.Type())
	}
	return dict, nil
}

// streamLength returns the declared /Length of a stream dictionary, or -1
// when it is missing or cannot be resolved.
func (o *objectLoader) streamLength(dict *raw.DictObj) int64 {
	switch v := dict.GetKey("Length").(type) {
	case raw.NumberObj:
		if v.IsInteger() && v.Int() >= 0 {
			return v.Int()
		}
	case raw.RefObj:
		if n, ok := o.lengths[v.R.Num]; ok {
			return n
		}
		o.lengths[v.R.Num] = -1
		offset, gen, found := o.table.Lookup(v.R.Num)
		if !found {
			return -1
		}
		obj, err := o.loadAt(v.R.Num, gen, offset)
		if err != nil {
			return -1
		}
		if num, ok := obj.(raw.NumberObj); ok && num.IsInteger() {
			o.lengths[v.R.Num] = num.Int()
			return num.Int()
		}
	}
	return -1
}

type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func newTokenReader(s scanner.Scanner) *tokenReader { return &tokenReader{s: s} }

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func parseObject(tr *tokenReader, depth int) (raw.Object, error) {
	if depth > maxNesting {
		return nil, errors.New("objects nested too deeply")
	}
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return raw.NumberObj{F: tok.Float, IsInt: false}, nil
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return parseArray(tr, depth+1)
	case scanner.TokenDict:
		return parseDict(tr, depth+1)
	case scanner.TokenRef:
		return raw.RefObj{R: raw.ObjectRef{Num: tok.Ref.Num, Gen: tok.Ref.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected %s token %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func parseArray(tr *tokenReader, depth int) (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			break
		}
		tr.unread(tok)
		item, err := parseObject(tr, depth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader, depth int) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			break
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name in dict at offset %d, got %s", tok.Pos, tok.Type)
		}
		val, err := parseObject(tr, depth)
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent entry.
		if _, isNull := val.(raw.NullObj); isNull {
			continue
		}
		d.SetKey(tok.Str, val)
	}
	return d, nil
}
