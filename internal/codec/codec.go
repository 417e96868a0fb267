// Package codec defines the decode capability: one interface with a
// variant per platform codec service, selected once at startup.
//
// Every decode failure is soft. Variants log the cause and report
// (nil, false); the native error never reaches the caller.
package codec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/errors"
	"github.com/javi11/altview/internal/normalize"
)

// File is a readable, seekable byte source. Name is a path hint used only
// for extension-based pre-filtering. afero.File and *os.File satisfy it.
type File interface {
	io.ReadSeeker
	Name() string
}

// Capability decodes encoded image bytes into canonical bitmaps.
type Capability interface {
	// Name identifies the variant in logs.
	Name() string
	// IsSupported reports whether the variant can decode anything on this host.
	IsSupported() bool
	// Accepts reports whether the variant handles files with this path.
	Accepts(path string) bool
	// LoadFull decodes the whole image, presented upright.
	LoadFull(ctx context.Context, f File) (*bitmap.Bitmap, bool)
	// LoadThumbnail returns an upright image whose long side is at most maxLongSide.
	LoadThumbnail(ctx context.Context, f File, maxLongSide int) (*bitmap.Bitmap, bool)
}

// backend is the format specific part of a variant. decoder wraps it with
// the shared thumbnail policy and the soft failure handling.
type backend interface {
	name() string
	available() bool
	accepts(ext string) bool
	// decode returns the full image as stored together with the orientation
	// that still has to be applied.
	decode(ctx context.Context, f File) (*bitmap.Bitmap, int, error)
	// embedded lists the thumbnails stored inside the file and the
	// orientation that applies to them.
	embedded(ctx context.Context, f File) ([]Embedded, int, error)
}

type decoder struct {
	b   backend
	log *slog.Logger
}

func newDecoder(b backend) *decoder {
	return &decoder{
		b:   b,
		log: slog.Default().With("component", "codec", "decoder", b.name()),
	}
}

func (d *decoder) Name() string {
	return d.b.name()
}

func (d *decoder) IsSupported() bool {
	return d.b.available()
}

func (d *decoder) Accepts(path string) bool {
	return d.b.accepts(extOf(path))
}

func (d *decoder) LoadFull(ctx context.Context, f File) (*bitmap.Bitmap, bool) {
	bmp, err := d.guard(ctx, f, func() (*bitmap.Bitmap, error) {
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
		return normalize.Orient(full, orientation), nil
	})
	if err != nil {
		return nil, false
	}
	return bmp, true
}

func (d *decoder) LoadThumbnail(ctx context.Context, f File, maxLongSide int) (*bitmap.Bitmap, bool) {
	if maxLongSide <= 0 {
		return d.LoadFull(ctx, f)
	}

	bmp, err := d.guard(ctx, f, func() (*bitmap.Bitmap, error) {
		return d.thumbnail(ctx, f, maxLongSide)
	})
	if err != nil {
		return nil, false
	}
	return bmp, true
}

// guard runs fn with the short-circuit and soft failure rules shared by
// all variants. Panics inside native decoders are recovered.
func (d *decoder) guard(ctx context.Context, f File, fn func() (*bitmap.Bitmap, error)) (bmp *bitmap.Bitmap, err error) {
	if f == nil {
		return nil, errors.ErrUnsupportedFormat
	}
	if !d.IsSupported() || !d.Accepts(f.Name()) {
		d.log.DebugContext(ctx, "Format not supported by decoder", "file", f.Name())
		return nil, errors.ErrUnsupportedFormat
	}

	defer func() {
		if r := recover(); r != nil {
			bmp = nil
			err = errors.NewDecodeError("decode", f.Name(), fmt.Errorf("decoder panic: %v", r))
			d.log.WarnContext(ctx, "Decoder panicked", "file", f.Name(), "error", err)
		}
	}()

	bmp, err = fn()
	if err == nil {
		if verr := bmp.Validate(); verr != nil {
			err = errors.NewDecodeError("normalize", f.Name(), verr)
		}
	}
	if err != nil {
		d.log.WarnContext(ctx, "Failed to decode image", "file", f.Name(), "error", err)
		return nil, err
	}
	return bmp, nil
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
