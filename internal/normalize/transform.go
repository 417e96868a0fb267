package normalize

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/javi11/altview/internal/bitmap"
)

// EXIF orientation values.
const (
	OrientationNormal         = 1
	OrientationMirror         = 2
	OrientationRotate180      = 3
	OrientationFlipVertical   = 4
	OrientationTranspose      = 5
	OrientationRotate90CW     = 6
	OrientationTransverse     = 7
	OrientationRotate270CW    = 8
	orientationFirstSwapValue = OrientationTranspose
)

// SwapsDimensions reports whether applying orientation swaps width and height.
func SwapsDimensions(orientation int) bool {
	return orientation >= orientationFirstSwapValue && orientation <= OrientationRotate270CW
}

// Orient returns b transformed so that an image tagged with the given EXIF
// orientation is presented upright. Orientation 1 and out of range values
// return b unchanged.
func Orient(b *bitmap.Bitmap, orientation int) *bitmap.Bitmap {
	if b == nil || orientation <= OrientationNormal || orientation > OrientationRotate270CW {
		return b
	}

	sw, sh := b.Width, b.Height
	dw, dh := sw, sh
	if SwapsDimensions(orientation) {
		dw, dh = sh, sw
	}

	dst := bitmap.New(dw, dh, b.Premultiplied)
	for sy := 0; sy < sh; sy++ {
		for sx := 0; sx < sw; sx++ {
			var dx, dy int
			switch orientation {
			case OrientationMirror:
				dx, dy = sw-1-sx, sy
			case OrientationRotate180:
				dx, dy = sw-1-sx, sh-1-sy
			case OrientationFlipVertical:
				dx, dy = sx, sh-1-sy
			case OrientationTranspose:
				dx, dy = sy, sx
			case OrientationRotate90CW:
				dx, dy = sh-1-sy, sx
			case OrientationTransverse:
				dx, dy = sh-1-sy, sw-1-sx
			case OrientationRotate270CW:
				dx, dy = sy, sw-1-sx
			}
			s := (sy*sw + sx) * bitmap.BytesPerPixel
			d := (dy*dw + dx) * bitmap.BytesPerPixel
			copy(dst.Pix[d:d+bitmap.BytesPerPixel], b.Pix[s:s+bitmap.BytesPerPixel])
		}
	}

	return dst
}

// Decimate keeps every factor-th pixel in both directions. It stands in for
// decoder-side subsampling when the decoder cannot subsample itself.
func Decimate(b *bitmap.Bitmap, factor int) *bitmap.Bitmap {
	if b == nil || factor <= 1 {
		return b
	}

	dw := max(1, b.Width/factor)
	dh := max(1, b.Height/factor)
	dst := bitmap.New(dw, dh, b.Premultiplied)

	for y := 0; y < dh; y++ {
		sy := y * factor
		for x := 0; x < dw; x++ {
			sx := x * factor
			s := (sy*b.Width + sx) * bitmap.BytesPerPixel
			d := (y*dw + x) * bitmap.BytesPerPixel
			copy(dst.Pix[d:d+bitmap.BytesPerPixel], b.Pix[s:s+bitmap.BytesPerPixel])
		}
	}

	return dst
}

// BoxSize returns the dimensions of a width x height image fitted into a
// square box of maxLongSide, preserving aspect ratio and never upscaling.
func BoxSize(width, height, maxLongSide int) (int, int) {
	long := max(width, height)
	if maxLongSide <= 0 || long <= maxLongSide {
		return width, height
	}
	if width >= height {
		return maxLongSide, max(1, (height*maxLongSide+width/2)/width)
	}
	return max(1, (width*maxLongSide+height/2)/height), maxLongSide
}

// ResampleToBox scales b into the maxLongSide box with Catmull-Rom filtering.
// The result is premultiplied. Bitmaps already inside the box are returned
// as is.
func ResampleToBox(b *bitmap.Bitmap, maxLongSide int) *bitmap.Bitmap {
	if b == nil {
		return nil
	}

	dw, dh := BoxSize(b.Width, b.Height, maxLongSide)
	if dw == b.Width && dh == b.Height {
		return b
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	src := b.ToImage()
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return &bitmap.Bitmap{
		Width:         dw,
		Height:        dh,
		Format:        bitmap.FormatRGBA8,
		Premultiplied: true,
		Pix:           dst.Pix,
	}
}
