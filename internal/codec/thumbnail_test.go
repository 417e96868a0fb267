package codec

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/normalize"
)

type namedReader struct {
	*bytes.Reader
	name string
}

func (n namedReader) Name() string { return n.name }

func fileOf(name string, data []byte) File {
	return namedReader{Reader: bytes.NewReader(data), name: name}
}

// fakeBackend records calls and returns canned results.
type fakeBackend struct {
	full        *bitmap.Bitmap
	fullErr     error
	thumbs      []Embedded
	orientation int
	panicOn     bool

	decodeCalls   int
	embeddedCalls int
}

func (f *fakeBackend) name() string            { return "fake" }
func (f *fakeBackend) available() bool         { return true }
func (f *fakeBackend) accepts(ext string) bool { return ext == ".fake" }

func (f *fakeBackend) decode(ctx context.Context, _ File) (*bitmap.Bitmap, int, error) {
	f.decodeCalls++
	if f.panicOn {
		panic("native decoder blew up")
	}
	return f.full, f.orientation, f.fullErr
}

func (f *fakeBackend) embedded(ctx context.Context, _ File) ([]Embedded, int, error) {
	f.embeddedCalls++
	return f.thumbs, f.orientation, nil
}

func embeddedOf(w, h int) Embedded {
	return Embedded{
		Width:  w,
		Height: h,
		Decode: func() (*bitmap.Bitmap, error) { return bitmap.New(w, h, false), nil },
	}
}

func TestSelectEmbedded(t *testing.T) {
	tests := []struct {
		name     string
		thumbs   []Embedded
		max      int
		wantLong int
		wantOK   bool
	}{
		{
			name:   "none",
			max:    256,
			wantOK: false,
		},
		{
			name:     "smallest at least max",
			thumbs:   []Embedded{embeddedOf(1024, 768), embeddedOf(320, 240), embeddedOf(160, 120)},
			max:      256,
			wantLong: 320,
			wantOK:   true,
		},
		{
			name:     "exact match wins",
			thumbs:   []Embedded{embeddedOf(512, 384), embeddedOf(256, 192)},
			max:      256,
			wantLong: 256,
			wantOK:   true,
		},
		{
			name:     "largest below max when none is big enough",
			thumbs:   []Embedded{embeddedOf(96, 64), embeddedOf(160, 120)},
			max:      256,
			wantLong: 160,
			wantOK:   true,
		},
		{
			name:     "portrait long side",
			thumbs:   []Embedded{embeddedOf(120, 300)},
			max:      256,
			wantLong: 300,
			wantOK:   true,
		},
		{
			name:   "unusable entries ignored",
			thumbs: []Embedded{{Width: 0, Height: 100, Decode: embeddedOf(1, 1).Decode}, {Width: 300, Height: 200}},
			max:    256,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectEmbedded(tt.thumbs, tt.max)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantLong, got.LongSide())
			}
		})
	}
}

func TestSubsampleFactor(t *testing.T) {
	tests := []struct {
		long, max, want int
	}{
		{long: 4000, max: 256, want: 15},
		{long: 512, max: 256, want: 2},
		{long: 511, max: 256, want: 1},
		{long: 256, max: 256, want: 1},
		{long: 100, max: 256, want: 1},
		{long: 100, max: 0, want: 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SubsampleFactor(tt.long, tt.max), "long=%d max=%d", tt.long, tt.max)
	}
}

func TestDecoder_ThumbnailUsesEmbedded(t *testing.T) {
	fb := &fakeBackend{
		full:        bitmap.New(4000, 3000, false),
		thumbs:      []Embedded{embeddedOf(160, 120), embeddedOf(640, 480)},
		orientation: normalize.OrientationNormal,
	}
	d := newDecoder(fb)

	bmp, ok := d.LoadThumbnail(context.Background(), fileOf("a.fake", nil), 256)
	require.True(t, ok)
	assert.Equal(t, 256, bmp.Width)
	assert.Equal(t, 192, bmp.Height)
	assert.Equal(t, 0, fb.decodeCalls, "full decode must be skipped when an embedded thumbnail fits")
}

func TestDecoder_ThumbnailFallsBackToSubsampledDecode(t *testing.T) {
	fb := &fakeBackend{
		full:        bitmap.New(1000, 500, false),
		orientation: normalize.OrientationNormal,
	}
	d := newDecoder(fb)

	bmp, ok := d.LoadThumbnail(context.Background(), fileOf("a.fake", nil), 256)
	require.True(t, ok)
	assert.Equal(t, 256, bmp.Width)
	assert.Equal(t, 128, bmp.Height)
	assert.Equal(t, 1, fb.decodeCalls)
	assert.NoError(t, bmp.Validate())
}

func TestDecoder_ThumbnailAppliesOrientation(t *testing.T) {
	fb := &fakeBackend{
		full:        bitmap.New(1000, 500, false),
		orientation: normalize.OrientationRotate90CW,
	}
	d := newDecoder(fb)

	bmp, ok := d.LoadThumbnail(context.Background(), fileOf("a.fake", nil), 256)
	require.True(t, ok)
	assert.Equal(t, 128, bmp.Width)
	assert.Equal(t, 256, bmp.Height)
}

func TestDecoder_SmallImageIsNotUpscaled(t *testing.T) {
	fb := &fakeBackend{full: bitmap.New(40, 30, false), orientation: normalize.OrientationNormal}
	d := newDecoder(fb)

	bmp, ok := d.LoadThumbnail(context.Background(), fileOf("a.fake", nil), 256)
	require.True(t, ok)
	assert.Equal(t, 40, bmp.Width)
	assert.Equal(t, 30, bmp.Height)
}

func TestDecoder_LoadFullOrients(t *testing.T) {
	fb := &fakeBackend{full: bitmap.New(100, 200, false), orientation: normalize.OrientationRotate90CW}
	d := newDecoder(fb)

	bmp, ok := d.LoadFull(context.Background(), fileOf("a.fake", nil))
	require.True(t, ok)
	assert.Equal(t, 200, bmp.Width)
	assert.Equal(t, 100, bmp.Height)
}

func TestDecoder_SoftFailures(t *testing.T) {
	tests := []struct {
		name string
		fb   *fakeBackend
	}{
		{name: "decode error", fb: &fakeBackend{fullErr: errors.New("corrupt")}},
		{name: "zero dimensions", fb: &fakeBackend{full: &bitmap.Bitmap{Width: 0, Height: 10}}},
		{name: "inconsistent buffer", fb: &fakeBackend{full: &bitmap.Bitmap{Width: 10, Height: 10, Pix: make([]byte, 12)}}},
		{name: "panic", fb: &fakeBackend{panicOn: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDecoder(tt.fb)

			bmp, ok := d.LoadFull(context.Background(), fileOf("a.fake", nil))
			assert.False(t, ok)
			assert.Nil(t, bmp)

			bmp, ok = d.LoadThumbnail(context.Background(), fileOf("a.fake", nil), 64)
			assert.False(t, ok)
			assert.Nil(t, bmp)
		})
	}
}

func TestDecoder_UnsupportedFormatShortCircuits(t *testing.T) {
	fb := &fakeBackend{full: bitmap.New(10, 10, false)}
	d := newDecoder(fb)

	_, ok := d.LoadFull(context.Background(), fileOf("photo.raw", nil))
	assert.False(t, ok)
	_, ok = d.LoadThumbnail(context.Background(), fileOf("photo.raw", nil), 64)
	assert.False(t, ok)

	assert.Zero(t, fb.decodeCalls)
	assert.Zero(t, fb.embeddedCalls)
}
