// Package normalize converts native decode results into the canonical
// bitmap format: 4 bytes per pixel, RGBA order, rows of exactly width*4
// bytes with no padding.
package normalize

import "fmt"

// Layout describes the channel order of a native pixel buffer.
type Layout uint8

const (
	LayoutRGB Layout = iota
	LayoutBGR
	LayoutRGBA
	LayoutBGRA
	LayoutARGB
	LayoutABGR
	LayoutRGBX
	LayoutBGRX
	LayoutGray
)

// channels holds the byte offset of each channel inside one source pixel.
// alpha < 0 means the source is opaque.
type channels struct {
	bpp   int
	r     int
	g     int
	b     int
	alpha int
}

var layoutTable = map[Layout]channels{
	LayoutRGB:  {bpp: 3, r: 0, g: 1, b: 2, alpha: -1},
	LayoutBGR:  {bpp: 3, r: 2, g: 1, b: 0, alpha: -1},
	LayoutRGBA: {bpp: 4, r: 0, g: 1, b: 2, alpha: 3},
	LayoutBGRA: {bpp: 4, r: 2, g: 1, b: 0, alpha: 3},
	LayoutARGB: {bpp: 4, r: 1, g: 2, b: 3, alpha: 0},
	LayoutABGR: {bpp: 4, r: 3, g: 2, b: 1, alpha: 0},
	LayoutRGBX: {bpp: 4, r: 0, g: 1, b: 2, alpha: -1},
	LayoutBGRX: {bpp: 4, r: 2, g: 1, b: 0, alpha: -1},
	LayoutGray: {bpp: 1, r: 0, g: 0, b: 0, alpha: -1},
}

// BytesPerPixel returns the pixel size of the layout, 0 if unknown.
func (l Layout) BytesPerPixel() int {
	return layoutTable[l].bpp
}

func (l Layout) String() string {
	switch l {
	case LayoutRGB:
		return "rgb"
	case LayoutBGR:
		return "bgr"
	case LayoutRGBA:
		return "rgba"
	case LayoutBGRA:
		return "bgra"
	case LayoutARGB:
		return "argb"
	case LayoutABGR:
		return "abgr"
	case LayoutRGBX:
		return "rgbx"
	case LayoutBGRX:
		return "bgrx"
	case LayoutGray:
		return "gray"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}
