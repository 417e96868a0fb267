package codec

import (
	"context"
	"strings"

	"github.com/javi11/altview/internal/bitmap"
)

// Chain dispatches every call to the first supported variant that accepts
// the file's path.
type Chain struct {
	variants []Capability
}

// NewChain returns a chain over variants, in preference order. Unsupported
// variants are kept but never selected.
func NewChain(variants ...Capability) *Chain {
	return &Chain{variants: variants}
}

// Name lists the supported variants, e.g. "tool-sips+goimage".
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.variants))
	for _, v := range c.variants {
		if v.IsSupported() {
			names = append(names, v.Name())
		}
	}
	if len(names) == 0 {
		return NoopName
	}
	return strings.Join(names, "+")
}

func (c *Chain) IsSupported() bool {
	for _, v := range c.variants {
		if v.IsSupported() {
			return true
		}
	}
	return false
}

func (c *Chain) Accepts(path string) bool {
	return c.pick(path) != nil
}

func (c *Chain) LoadFull(ctx context.Context, f File) (*bitmap.Bitmap, bool) {
	if f == nil {
		return nil, false
	}
	v := c.pick(f.Name())
	if v == nil {
		return nil, false
	}
	return v.LoadFull(ctx, f)
}

func (c *Chain) LoadThumbnail(ctx context.Context, f File, maxLongSide int) (*bitmap.Bitmap, bool) {
	if f == nil {
		return nil, false
	}
	v := c.pick(f.Name())
	if v == nil {
		return nil, false
	}
	return v.LoadThumbnail(ctx, f, maxLongSide)
}

// Variants returns the variants in preference order.
func (c *Chain) Variants() []Capability {
	out := make([]Capability, len(c.variants))
	copy(out, c.variants)
	return out
}

func (c *Chain) pick(path string) Capability {
	for _, v := range c.variants {
		if v.IsSupported() && v.Accepts(path) {
			return v
		}
	}
	return nil
}
