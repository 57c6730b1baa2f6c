package transcode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func pngFixture(t *testing.T, width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegFixture(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestTranscode_KeepsDimensions(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		w, h int
	}{
		{name: "png", raw: pngFixture(t, 17, 9), w: 17, h: 9},
		{name: "jpeg", raw: jpegFixture(t, 32, 24), w: 32, h: 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(log.NewLogger()).Transcode(tt.raw, 0.8)
			require.NoError(t, err)

			cfg, err := xwebp.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.w, cfg.Width)
			assert.Equal(t, tt.h, cfg.Height)
		})
	}
}

func TestTranscode_DoesNotMutateInput(t *testing.T) {
	raw := pngFixture(t, 8, 8)
	original := append([]byte(nil), raw...)

	_, err := New(log.NewLogger()).Transcode(raw, 0.5)
	require.NoError(t, err)

	assert.Equal(t, original, raw)
}

func TestTranscode_Deterministic(t *testing.T) {
	raw := pngFixture(t, 12, 12)
	transcoder := New(log.NewLogger())

	first, err := transcoder.Transcode(raw, 0.8)
	require.NoError(t, err)
	second, err := transcoder.Transcode(raw, 0.8)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTranscode_DecodeError(t *testing.T) {
	_, err := New(log.NewLogger()).Transcode([]byte("definitely not an image"), 0.8)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

func TestTranscode_NoEncoder(t *testing.T) {
	_, err := NewWithEncoder(nil, log.NewLogger()).Transcode(pngFixture(t, 2, 2), 0.8)

	var envErr *UnsupportedEnvironmentError
	require.True(t, errors.As(err, &envErr))
}

func TestTranscode_EncoderFailure(t *testing.T) {
	encodeErr := errors.New("image too large for webp")
	failing := func(io.Writer, image.Image, int) error { return encodeErr }

	_, err := NewWithEncoder(failing, log.NewLogger()).Transcode(pngFixture(t, 2, 2), 0.8)

	require.ErrorIs(t, err, encodeErr)
	assert.EqualError(t, err, "encode webp: image too large for webp")
	var envErr *UnsupportedEnvironmentError
	assert.False(t, errors.As(err, &envErr))
}

func TestTranscode_PassesQualityAndSurface(t *testing.T) {
	var gotQuality int
	var gotBounds image.Rectangle
	var gotPixel color.NRGBA
	recorder := func(w io.Writer, img image.Image, quality int) error {
		gotQuality = quality
		gotBounds = img.Bounds()
		gotPixel = img.(*image.NRGBA).NRGBAAt(3, 2)
		_, err := w.Write([]byte("encoded"))
		return err
	}

	out, err := NewWithEncoder(recorder, log.NewLogger()).Transcode(pngFixture(t, 5, 4), 0.8)

	require.NoError(t, err)
	assert.Equal(t, []byte("encoded"), out)
	assert.Equal(t, 80, gotQuality)
	assert.Equal(t, image.Rect(0, 0, 5, 4), gotBounds)
	assert.Equal(t, color.NRGBA{R: 30, G: 20, B: 200, A: 255}, gotPixel)
}

func TestQuality(t *testing.T) {
	tests := []struct {
		factor float64
		want   int
	}{
		{factor: 0.8, want: 80},
		{factor: 0, want: 0},
		{factor: 1, want: 100},
		{factor: -0.2, want: 0},
		{factor: 1.7, want: 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quality(tt.factor), "factor %v", tt.factor)
	}
}

func Test_surfacePool_Reuse(t *testing.T) {
	pool := newSurfacePool()

	big := pool.get(10, 10)
	pool.put(big)
	small := pool.get(3, 2)

	assert.Equal(t, image.Rect(0, 0, 3, 2), small.Bounds())
	assert.Equal(t, 12, small.Stride)
	assert.Len(t, small.Pix, 24)
}
