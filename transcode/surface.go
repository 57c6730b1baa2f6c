package transcode

import (
	"image"
	"sync"
)

type surfacePool struct {
	pool sync.Pool
}

func newSurfacePool() *surfacePool {
	return &surfacePool{}
}

// get returns a surface of exactly width x height. Its pixels are undefined; callers overwrite
// every pixel.
func (p *surfacePool) get(width, height int) *image.NRGBA {
	size := width * height * 4
	if s, ok := p.pool.Get().(*image.NRGBA); ok && cap(s.Pix) >= size {
		s.Pix = s.Pix[:size]
		s.Stride = width * 4
		s.Rect = image.Rect(0, 0, width, height)
		return s
	}
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

func (p *surfacePool) put(s *image.NRGBA) {
	if s == nil {
		return
	}
	p.pool.Put(s)
}
