// Package transcode re-encodes raster images as lossy WebP without resizing them.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/disintegration/imaging"
	"github.com/docker/go-units"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp" // registers the webp decoder with image.Decode
)

const (
	// ContentType of every transcoded payload.
	ContentType = "image/webp"
	// Extension of every transcoded payload.
	Extension = ".webp"
)

// EncodeFunc writes img to w as lossy WebP at quality 0-100.
type EncodeFunc func(w io.Writer, img image.Image, quality int) error

// Transcoder converts raw image bytes to WebP.
type Transcoder struct {
	encode   EncodeFunc
	surfaces *surfacePool
	logger   log.Logger
}

// New returns a Transcoder backed by libwebp.
func New(logger log.Logger) *Transcoder {
	return NewWithEncoder(encodeWebP, logger)
}

// NewWithEncoder returns a Transcoder using a custom encoder. A nil encoder makes every
// Transcode call fail with UnsupportedEnvironmentError.
func NewWithEncoder(encode EncodeFunc, logger log.Logger) *Transcoder {
	return &Transcoder{
		encode:   encode,
		surfaces: newSurfacePool(),
		logger:   logger,
	}
}

// Transcode decodes raw, draws it onto a surface of identical pixel size and encodes the surface.
// quality is a factor between 0 and 1; raw is never modified.
func (t *Transcoder) Transcode(raw []byte, quality float64) ([]byte, error) {
	if t.encode == nil {
		return nil, &UnsupportedEnvironmentError{Err: fmt.Errorf("no webp encoder available")}
	}

	surface, err := t.render(raw)
	if err != nil {
		return nil, err
	}
	defer t.surfaces.put(surface)

	var out bytes.Buffer
	if err := t.encode(&out, surface, Quality(quality)); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}

	bounds := surface.Bounds()
	t.logger.Debugf("Transcoded %dx%d image: %s -> %s", bounds.Dx(), bounds.Dy(),
		units.HumanSize(float64(len(raw))), units.HumanSize(float64(out.Len())))

	return out.Bytes(), nil
}

// render decodes raw and copies it into a pooled surface. The decoded bitmap is only
// referenced inside this call.
func (t *Transcoder) render(raw []byte) (*image.NRGBA, error) {
	bm, err := decodeBitmap(raw)
	if err != nil {
		return nil, err
	}
	defer bm.release()

	bounds := bm.img.Bounds()
	surface := t.surfaces.get(bounds.Dx(), bounds.Dy())
	draw.Draw(surface, surface.Bounds(), bm.img, bounds.Min, draw.Src)

	return surface, nil
}

type bitmap struct {
	img    image.Image
	format string
}

func decodeBitmap(raw []byte) (*bitmap, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &DecodeError{Format: format, Err: fmt.Errorf("image has no pixels (%dx%d)", bounds.Dx(), bounds.Dy())}
	}

	return &bitmap{img: img, format: format}, nil
}

func (b *bitmap) release() {
	b.img = nil
}

// Quality maps a 0-1 factor to the encoder's 0-100 scale.
func Quality(factor float64) int {
	q := int(math.Round(factor * 100))
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, webp.Options{Quality: quality})
}
