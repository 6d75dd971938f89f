package builder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register decoders
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/img2pdf/filters"
)

// ErrUnknownFormat is returned for data no registered decoder recognizes.
var ErrUnknownFormat = errors.New("unknown image format")

// Image is a decoded picture. Format and Data are kept so JPEG input can be
// embedded without re-encoding.
type Image struct {
	image.Image
	Format string
	Data   []byte
}

// Decode reads PNG, JPEG, GIF, BMP, TIFF or WebP data.
func Decode(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnknownFormat
		}
		return nil, err
	}
	if err := filters.ValidateImageBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return &Image{Image: img, Format: format, Data: data}, nil
}

// ImageFromFile loads and decodes an image file.
func ImageFromFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// FromImage wraps an in-memory image.
func FromImage(img image.Image) *Image { return &Image{Image: img} }

func opaque(c color.Color) color.RGBA {
	r, g, b, _ := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff}
}

// fitPixels returns the size of src after bounding it to maxPixels, keeping
// the aspect ratio.
func fitPixels(w, h, maxPixels int) (int, int) {
	if maxPixels <= 0 || w*h <= maxPixels {
		return w, h
	}
	f := math.Sqrt(float64(maxPixels) / float64(w*h))
	nw := int(math.Max(1, math.Floor(float64(w)*f)))
	nh := int(math.Max(1, math.Floor(float64(h)*f)))
	return nw, nh
}

// flatten composites src over bg into a w x h RGB buffer, resampling with
// Catmull-Rom when the size changes.
func flatten(src image.Image, w, h int, bg color.Color) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{C: opaque(bg)}, image.Point{}, xdraw.Src)
	sb := src.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), src, sb.Min, xdraw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Over, nil)
	}

	out := make([]byte, 0, w*h*3)
	for i := 0; i < len(dst.Pix); i += 4 {
		out = append(out, dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
	}
	return out
}

// jpegColorSpace reports the device color space of JPEG data that can be
// embedded directly. CMYK and progressive-only oddities are re-encoded.
func jpegColorSpace(data []byte) (string, bool) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	switch cfg.ColorModel {
	case color.GrayModel:
		return "DeviceGray", true
	case color.YCbCrModel:
		return "DeviceRGB", true
	}
	return "", false
}
