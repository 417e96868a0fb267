package codec

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/errors"
	"github.com/javi11/altview/internal/normalize"
)

// GoImageName is the name of the pure Go variant.
const GoImageName = "goimage"

var goImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".jpe":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// exifExts are the containers goexif can parse.
var exifExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".jpe":  true,
	".tif":  true,
	".tiff": true,
}

// goImageBackend decodes with the image packages registered in this binary.
// It is available on every platform.
type goImageBackend struct{}

// NewGoImage returns the pure Go decoder variant.
func NewGoImage() Capability {
	return newDecoder(goImageBackend{})
}

func (goImageBackend) name() string {
	return GoImageName
}

func (goImageBackend) available() bool {
	return true
}

func (goImageBackend) accepts(ext string) bool {
	return goImageExts[ext]
}

func (goImageBackend) decode(ctx context.Context, f File) (*bitmap.Bitmap, int, error) {
	orientation := normalize.OrientationNormal
	if exifExts[extOf(f.Name())] {
		if x, err := exif.Decode(f); err == nil {
			orientation = orientationOf(x)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, 0, errors.NewDecodeError("seek", f.Name(), err)
		}
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, errors.NewDecodeError("decode", f.Name(), err)
	}

	bmp, err := normalize.FromImage(img)
	if err != nil {
		return nil, 0, errors.NewDecodeError("normalize", f.Name(), err)
	}

	return bmp, orientation, nil
}

func (goImageBackend) embedded(ctx context.Context, f File) ([]Embedded, int, error) {
	if !exifExts[extOf(f.Name())] {
		return nil, normalize.OrientationNormal, nil
	}

	x, err := exif.Decode(f)
	if err != nil {
		return nil, normalize.OrientationNormal, errors.NewDecodeError("exif", f.Name(), err)
	}
	orientation := orientationOf(x)

	data, err := x.JpegThumbnail()
	if err != nil || len(data) == 0 {
		return nil, orientation, nil
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, orientation, errors.NewDecodeError("exif", f.Name(), err)
	}

	thumb := Embedded{
		Width:  cfg.Width,
		Height: cfg.Height,
		Decode: func() (*bitmap.Bitmap, error) {
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			return normalize.FromImage(img)
		},
	}

	return []Embedded{thumb}, orientation, nil
}

func orientationOf(x *exif.Exif) int {
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return normalize.OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < normalize.OrientationNormal || v > normalize.OrientationRotate270CW {
		return normalize.OrientationNormal
	}
	return v
}
