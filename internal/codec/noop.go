package codec

import (
	"context"

	"github.com/javi11/altview/internal/bitmap"
)

// NoopName is the name of the variant used when nothing can decode.
const NoopName = "noop"

type noop struct{}

// NewNoop returns the variant for hosts without any codec. It never decodes.
func NewNoop() Capability {
	return noop{}
}

func (noop) Name() string             { return NoopName }
func (noop) IsSupported() bool        { return false }
func (noop) Accepts(path string) bool { return false }

func (noop) LoadFull(ctx context.Context, f File) (*bitmap.Bitmap, bool) {
	return nil, false
}

func (noop) LoadThumbnail(ctx context.Context, f File, maxLongSide int) (*bitmap.Bitmap, bool) {
	return nil, false
}
