package builder

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// PageSize selects the page frame.
type PageSize string

const (
	// SizeImage makes the page as large as the image at the configured DPI.
	SizeImage  PageSize = "image"
	SizeA4     PageSize = "a4"
	SizeLetter PageSize = "letter"
)

// Orientation rotates the page frame. It never rotates the image.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
	// Auto follows the aspect of the image.
	Auto Orientation = "auto"
)

// Margin presets, in points.
const (
	MarginNone   = 0
	MarginSmall  = 18
	MarginMedium = 36
	MarginLarge  = 72
)

const (
	DefaultDPI       = 96
	DefaultMaxPixels = 40_000_000
)

var paperSizes = map[PageSize][2]float64{
	SizeA4:     {595.28, 841.89},
	SizeLetter: {612, 792},
}

// PageOptions controls how an image is laid out on its page. The zero value
// gives an image-sized portrait page at 96 DPI without margins on a white
// background.
type PageOptions struct {
	PageSize    PageSize
	Orientation Orientation
	// Margin in points on every side.
	Margin float64
	DPI    float64
	// Background is painted behind transparent pixels.
	Background color.Color
	// MaxPixels bounds the embedded image; larger images are downscaled.
	MaxPixels int
	// Compression is the compress/flate level for image data; 0 selects the
	// default level.
	Compression int
	// PassthroughJPEG embeds JPEG input as is (DCTDecode) when no
	// compositing or scaling is needed.
	PassthroughJPEG bool
}

func (o PageOptions) withDefaults() PageOptions {
	if o.PageSize == "" {
		o.PageSize = SizeImage
	}
	if o.Orientation == "" {
		o.Orientation = Portrait
	}
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.Background == nil {
		o.Background = color.White
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	return o
}

// Validate reports options that cannot be laid out.
func (o PageOptions) Validate() error {
	switch o.PageSize {
	case "", SizeImage, SizeA4, SizeLetter:
	default:
		return fmt.Errorf("unknown page size %q", o.PageSize)
	}
	switch o.Orientation {
	case "", Portrait, Landscape, Auto:
	default:
		return fmt.Errorf("unknown orientation %q", o.Orientation)
	}
	if o.Margin < 0 {
		return fmt.Errorf("negative margin %g", o.Margin)
	}
	if size, ok := paperSizes[o.PageSize]; ok && 2*o.Margin >= size[0] {
		return fmt.Errorf("margin %g leaves no room on %s paper", o.Margin, o.PageSize)
	}
	return nil
}

func ParsePageSize(s string) (PageSize, error) {
	switch p := PageSize(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return SizeImage, nil
	case SizeImage, SizeA4, SizeLetter:
		return p, nil
	}
	return "", fmt.Errorf("unknown page size %q", s)
}

func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Portrait, nil
	case Portrait, Landscape, Auto:
		return o, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

// ParseMargin accepts a preset name or a number of points.
func ParseMargin(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return MarginNone, nil
	case "small":
		return MarginSmall, nil
	case "medium":
		return MarginMedium, nil
	case "large":
		return MarginLarge, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid margin %q", s)
	}
	return v, nil
}
