package normalize

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/errors"
)

// Source is a native decode result with arbitrary stride and channel order.
// Stride is the distance in bytes between the starts of two rows; zero means
// tightly packed.
type Source struct {
	Width         int
	Height        int
	Stride        int
	Layout        Layout
	Premultiplied bool
	Pix           []byte
}

// Normalize converts src into the canonical format.
//
// Rows are copied pixel by pixel with channel reordering. Reads never go past
// the source stride or the end of the buffer and writes never go past
// width*4 bytes of a destination row: rows the source cannot fully supply
// are truncated and left zeroed.
//
// A source whose stride holds fewer pixels than its reported width but at
// least its reported height is treated as rotated by 90 degrees and its
// dimensions are swapped before conversion.
func Normalize(src Source) (*bitmap.Bitmap, error) {
	ch, ok := layoutTable[src.Layout]
	if !ok {
		return nil, fmt.Errorf("unknown source layout %s: %w", src.Layout, errors.ErrInvalidBitmap)
	}

	width, height := src.Width, src.Height
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("zero source dimensions %dx%d: %w", width, height, errors.ErrInvalidBitmap)
	}
	if len(src.Pix) == 0 {
		return nil, fmt.Errorf("empty source buffer: %w", errors.ErrInvalidBitmap)
	}

	stride := src.Stride
	if stride <= 0 {
		stride = width * ch.bpp
	}

	perRow := stride / ch.bpp
	if perRow < width && perRow >= height {
		width, height = height, width
	}

	dst := bitmap.New(width, height, src.Premultiplied && ch.alpha >= 0)
	dstStride := dst.Stride()
	rowPixels := min(perRow, width)

	for y := 0; y < height; y++ {
		start := y * stride
		if start >= len(src.Pix) {
			break
		}
		end := min(start+stride, len(src.Pix))
		row := src.Pix[start:end]
		out := dst.Pix[y*dstStride : (y+1)*dstStride]

		n := min(rowPixels, len(row)/ch.bpp)
		for x := 0; x < n; x++ {
			s := x * ch.bpp
			d := x * bitmap.BytesPerPixel
			out[d] = row[s+ch.r]
			out[d+1] = row[s+ch.g]
			out[d+2] = row[s+ch.b]
			if ch.alpha >= 0 {
				out[d+3] = row[s+ch.alpha]
			} else {
				out[d+3] = 0xff
			}
		}
	}

	return dst, nil
}

// FromImage converts a Go image into the canonical format.
func FromImage(img image.Image) (*bitmap.Bitmap, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image: %w", errors.ErrInvalidBitmap)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("zero image dimensions %dx%d: %w", b.Dx(), b.Dy(), errors.ErrInvalidBitmap)
	}

	switch m := img.(type) {
	case *image.NRGBA:
		return Normalize(Source{
			Width:  b.Dx(),
			Height: b.Dy(),
			Stride: m.Stride,
			Layout: LayoutRGBA,
			Pix:    m.Pix[m.PixOffset(b.Min.X, b.Min.Y):],
		})
	case *image.RGBA:
		return Normalize(Source{
			Width:         b.Dx(),
			Height:        b.Dy(),
			Stride:        m.Stride,
			Layout:        LayoutRGBA,
			Premultiplied: true,
			Pix:           m.Pix[m.PixOffset(b.Min.X, b.Min.Y):],
		})
	case *image.Gray:
		return Normalize(Source{
			Width:  b.Dx(),
			Height: b.Dy(),
			Stride: m.Stride,
			Layout: LayoutGray,
			Pix:    m.Pix[m.PixOffset(b.Min.X, b.Min.Y):],
		})
	}

	// YCbCr, CMYK, paletted and anything else: let x/image/draw convert.
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	return &bitmap.Bitmap{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: bitmap.FormatRGBA8,
		Pix:    dst.Pix,
	}, nil
}
