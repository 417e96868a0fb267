package bitmap

import (
	"fmt"
	"image"

	"github.com/javi11/altview/internal/errors"
)

// Format identifies the in-memory pixel layout of a Bitmap.
type Format uint8

const (
	// FormatRGBA8 is the only canonical format: 4 bytes per pixel in
	// R, G, B, A order with rows of exactly Width*4 bytes.
	FormatRGBA8 Format = iota
)

// BytesPerPixel is the pixel size of the canonical format.
const BytesPerPixel = 4

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Bitmap is a decoded image in the canonical format. A Bitmap must not be
// modified once it has been handed to the cache or to a caller.
type Bitmap struct {
	Width         int
	Height        int
	Format        Format
	Premultiplied bool
	Pix           []byte
}

// New allocates a zeroed canonical bitmap.
func New(width, height int, premultiplied bool) *Bitmap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Bitmap{
		Width:         width,
		Height:        height,
		Format:        FormatRGBA8,
		Premultiplied: premultiplied,
		Pix:           make([]byte, width*height*BytesPerPixel),
	}
}

// SizeBytes returns the exact size of the pixel buffer used for budget accounting.
func (b *Bitmap) SizeBytes() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Pix))
}

// Stride returns the row length in bytes.
func (b *Bitmap) Stride() int {
	return b.Width * BytesPerPixel
}

// LongSide returns max(Width, Height).
func (b *Bitmap) LongSide() int {
	return max(b.Width, b.Height)
}

// Validate checks that the dimensions are usable and match the buffer.
func (b *Bitmap) Validate() error {
	if b == nil {
		return fmt.Errorf("nil bitmap: %w", errors.ErrInvalidBitmap)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("zero dimensions %dx%d: %w", b.Width, b.Height, errors.ErrInvalidBitmap)
	}
	if b.Format != FormatRGBA8 {
		return fmt.Errorf("non canonical format %s: %w", b.Format, errors.ErrInvalidBitmap)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return fmt.Errorf("buffer is %d bytes, %dx%d needs %d: %w", len(b.Pix), b.Width, b.Height, want, errors.ErrInvalidBitmap)
	}
	return nil
}

// Clone returns a distinct owned copy.
func (b *Bitmap) Clone() *Bitmap {
	if b == nil {
		return nil
	}
	c := *b
	c.Pix = make([]byte, len(b.Pix))
	copy(c.Pix, b.Pix)
	return &c
}

// ToImage exposes the buffer as an image.Image without copying.
// Premultiplied bitmaps map to *image.RGBA, others to *image.NRGBA.
func (b *Bitmap) ToImage() image.Image {
	rect := image.Rect(0, 0, b.Width, b.Height)
	if b.Premultiplied {
		return &image.RGBA{Pix: b.Pix, Stride: b.Stride(), Rect: rect}
	}
	return &image.NRGBA{Pix: b.Pix, Stride: b.Stride(), Rect: rect}
}
