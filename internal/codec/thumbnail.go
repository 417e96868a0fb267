package codec

import (
	"context"
	"io"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/errors"
	"github.com/javi11/altview/internal/normalize"
)

// Embedded is a thumbnail stored inside an image file. Width and Height are
// the stored dimensions, before orientation.
type Embedded struct {
	Width  int
	Height int
	Decode func() (*bitmap.Bitmap, error)
}

// LongSide returns max(Width, Height).
func (e Embedded) LongSide() int {
	return max(e.Width, e.Height)
}

// SelectEmbedded picks the embedded thumbnail to use for a maxLongSide box:
// the smallest one whose long side is still >= maxLongSide, otherwise the
// largest one smaller than maxLongSide. Thumbnails with zero dimensions or
// no decoder are ignored.
func SelectEmbedded(thumbs []Embedded, maxLongSide int) (Embedded, bool) {
	var (
		above, below         Embedded
		haveAbove, haveBelow bool
	)

	for _, t := range thumbs {
		if t.Width <= 0 || t.Height <= 0 || t.Decode == nil {
			continue
		}
		long := t.LongSide()
		if long >= maxLongSide {
			if !haveAbove || long < above.LongSide() {
				above, haveAbove = t, true
			}
			continue
		}
		if !haveBelow || long > below.LongSide() {
			below, haveBelow = t, true
		}
	}

	if haveAbove {
		return above, true
	}
	return below, haveBelow
}

// SubsampleFactor returns floor(longSide/maxLongSide), at least 1.
func SubsampleFactor(longSide, maxLongSide int) int {
	if maxLongSide <= 0 || longSide <= maxLongSide {
		return 1
	}
	return max(1, longSide/maxLongSide)
}

func (d *decoder) thumbnail(ctx context.Context, f File, maxLongSide int) (*bitmap.Bitmap, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.NewDecodeError("seek", f.Name(), err)
	}

	thumbs, orientation, err := d.b.embedded(ctx, f)
	if err != nil {
		d.log.DebugContext(ctx, "No embedded thumbnails", "file", f.Name(), "error", err)
	}

	if t, ok := SelectEmbedded(thumbs, maxLongSide); ok {
		bmp, err := t.Decode()
		if err == nil {
			err = bmp.Validate()
		}
		if err == nil {
			d.log.DebugContext(ctx, "Using embedded thumbnail",
				"file", f.Name(),
				"width", t.Width,
				"height", t.Height,
				"max_long_side", maxLongSide)
			return normalize.ResampleToBox(normalize.Orient(bmp, orientation), maxLongSide), nil
		}
		d.log.DebugContext(ctx, "Embedded thumbnail unusable, decoding full image", "file", f.Name(), "error", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.NewDecodeError("seek", f.Name(), err)
	}

	full, orientation, err := d.b.decode(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := full.Validate(); err != nil {
		return nil, errors.NewDecodeError("decode", f.Name(), err)
	}

	factor := SubsampleFactor(full.LongSide(), maxLongSide)
	bmp := normalize.Decimate(full, factor)
	bmp = normalize.Orient(bmp, orientation)

	return normalize.ResampleToBox(bmp, maxLongSide), nil
}
