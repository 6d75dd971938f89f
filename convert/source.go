package convert

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is one input image. Either Data is set or Open returns a reader.
type Source struct {
	Name string
	Data []byte
	Open func() (io.ReadCloser, error)
}

// FileSource reads the image at path when the conversion needs it.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSource wraps an image already held in memory.
func BytesSource(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

func (s Source) read() ([]byte, error) {
	if s.Open == nil {
		return s.Data, nil
	}
	rc, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
