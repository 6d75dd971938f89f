package writer

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/img2pdf/ir/raw"
)

var errBadNumber = errors.New("number is not finite")

func pdfVersion(doc *raw.Document, cfg Config) string {
	switch {
	case cfg.Version != "":
		return cfg.Version
	case doc.Version != "":
		return doc.Version
	}
	return PDF17
}

// fileID returns the two /ID strings. The digest covers the body written so
// far.
func fileID(body []byte, cfg Config) [2][]byte {
	sum := blake2b.Sum256(body)
	seed := append([]byte(nil), sum[:16]...)
	if cfg.Deterministic {
		return [2][]byte{seed, append([]byte(nil), seed...)}
	}
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		id = seed
	}
	return [2][]byte{id, seed}
}

// buildTrailer copies src and replaces the entries that describe the file
// layout rather than the document.
func buildTrailer(src *raw.DictObj, size int, ids *[2][]byte) *raw.DictObj {
	trailer := raw.Dict()
	if src != nil {
		for k, v := range src.KV {
			switch k {
			case "Size", "Prev", "XRefStm", "ID":
				continue
			}
			trailer.SetKey(k, v)
		}
	}
	trailer.SetKey("Size", raw.NumberInt(int64(size)))
	if ids != nil {
		trailer.SetKey("ID", raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	}
	return trailer
}

func serializePrimitive(b *bytes.Buffer, o raw.Object) error {
	switch v := o.(type) {
	case raw.NameObj:
		b.WriteString(pdfNameLiteral(v.Val))
	case raw.NumberObj:
		if v.IsInteger() {
			b.WriteString(strconv.FormatInt(v.Int(), 10))
			return nil
		}
		s, err := formatReal(v.Float())
		if err != nil {
			return err
		}
		b.WriteString(s)
	case raw.BoolObj:
		if v.Value() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case raw.NullObj, nil:
		b.WriteString("null")
	case raw.StringObj:
		if v.IsHex() {
			b.WriteByte('<')
			b.WriteString(strings.ToUpper(hex.EncodeToString(v.Value())))
			b.WriteByte('>')
			return nil
		}
		b.Write(escapeLiteralString(v.Value()))
	case *raw.ArrayObj:
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			if err := serializePrimitive(b, it); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *raw.DictObj:
		return serializeDict(b, v, nil)
	case *raw.StreamObj:
		// Length always describes the payload actually written.
		length := raw.NumberInt(int64(len(v.Data)))
		if err := serializeDict(b, v.Dict, map[string]raw.Object{"Length": length}); err != nil {
			return err
		}
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	case raw.RefObj:
		fmt.Fprintf(b, "%d %d R", v.R.Num, v.R.Gen)
	default:
		return fmt.Errorf("cannot serialize %T", o)
	}
	return nil
}

func serializeDict(b *bytes.Buffer, d *raw.DictObj, override map[string]raw.Object) error {
	if d == nil {
		d = raw.Dict()
	}
	b.WriteString("<<")
	keys := d.SortedKeys()
	for k := range override {
		if d.GetKey(k) == nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := d.GetKey(k)
		if o, ok := override[k]; ok {
			val = o
		}
		b.WriteString(pdfNameLiteral(k))
		b.WriteByte(' ')
		if err := serializePrimitive(b, val); err != nil {
			return err
		}
	}
	b.WriteString(">>")
	return nil
}

func formatReal(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", errBadNumber, f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if s == "-0" {
		s = "0"
	}
	return s, nil
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// pdfNameLiteral writes value as a name token, escaping delimiters,
// whitespace, '#' and bytes outside the printable range.
func pdfNameLiteral(value string) string {
	var b strings.Builder
	b.WriteByte('/')
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7f && !strings.ContainsRune("#()<>[]{}/%", rune(ch)) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}
