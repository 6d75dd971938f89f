package convert

import (
	"time"

	"github.com/wudi/img2pdf/ir/raw"
)

// DefaultProducer is written to the Info dictionary when Config.Producer is
// empty.
const DefaultProducer = "img2pdf"

// pdfDate formats t as a PDF date string in UTC.
func pdfDate(t time.Time) string {
	return "D:" + t.UTC().Format("20060102150405") + "Z"
}

// addInfo attaches a document information dictionary under a fresh object
// number and points the trailer at it.
func addInfo(doc *raw.Document, title, producer string, created time.Time) raw.ObjectRef {
	info := raw.Dict()
	if title != "" {
		info.SetKey("Title", raw.TextString(title))
	}
	info.SetKey("Producer", raw.TextString(producer))
	info.SetKey("CreationDate", raw.Str([]byte(pdfDate(created))))

	ref := raw.ObjectRef{Num: doc.MaxObjectNumber() + 1}
	doc.Objects[ref] = info
	doc.Trailer.SetKey("Info", raw.RefTo(ref))
	return ref
}
