package raw

import (
	"golang.org/x/text/encoding/unicode"
)

var utf16BOM = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// TextString encodes s as a PDF text string. Printable ASCII is stored as is;
// anything else is written as UTF-16BE with a byte order mark.
func TextString(s string) StringObj {
	if isPlainASCII(s) {
		return Str([]byte(s))
	}
	enc, err := utf16BOM.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return Str([]byte(s))
	}
	return HexStr(enc)
}

// DecodeTextString reverses TextString.
func DecodeTextString(s StringObj) string {
	b := s.Bytes
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		out, err := utf16BOM.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	}
	return string(b)
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
