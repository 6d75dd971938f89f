package raw

import (
	"bytes"
	"testing"
)

func TestTextString(t *testing.T) {
	ascii := TextString("Holiday 2024")
	if ascii.Hex || string(ascii.Bytes) != "Holiday 2024" {
		t.Fatalf("ASCII title encoded as %+v", ascii)
	}

	s := TextString("Über")
	if !s.Hex || !bytes.HasPrefix(s.Bytes, []byte{0xFE, 0xFF}) {
		t.Fatalf("non-ASCII title missing BOM: % x", s.Bytes)
	}
	if want := []byte{0xFE, 0xFF, 0x00, 0xDC, 0x00, 'b', 0x00, 'e', 0x00, 'r'}; !bytes.Equal(s.Bytes, want) {
		t.Fatalf("got % x, want % x", s.Bytes, want)
	}

	for _, in := range []string{"", "plain", "Über", "日本語", "tab\there"} {
		if got := DecodeTextString(TextString(in)); got != in {
			t.Errorf("round trip %q -> %q", in, got)
		}
	}
}
