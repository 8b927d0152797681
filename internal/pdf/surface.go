package pdf

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// Surface is a reusable drawing target. Its pixel buffer and encode buffer
// are kept between renders and only grow. A Surface is not safe for
// concurrent use; callers hold it exclusively through a pool.
type Surface struct {
	img *image.RGBA
	buf bytes.Buffer
	enc png.Encoder
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{
		img: image.NewRGBA(image.Rectangle{}),
		enc: png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Resize sets the drawable area to width x height, reusing the pixel buffer
// when it is large enough.
func (s *Surface) Resize(width, height int) {
	n := width * height * 4
	if cap(s.img.Pix) >= n {
		s.img.Pix = s.img.Pix[:n]
		clear(s.img.Pix)
	} else {
		s.img.Pix = make([]uint8, n)
	}
	s.img.Stride = width * 4
	s.img.Rect = image.Rect(0, 0, width, height)
}

// Width returns the current drawable width.
func (s *Surface) Width() int { return s.img.Rect.Dx() }

// Height returns the current drawable height.
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Draw paints src onto the whole surface, scaling when sizes differ.
func (s *Surface) Draw(src image.Image) {
	dst := s.img.Bounds()
	if src.Bounds().Size() == dst.Size() {
		draw.Draw(s.img, dst, src, src.Bounds().Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(s.img, dst, src, src.Bounds(), draw.Src, nil)
}

// Snapshot encodes the surface as PNG and returns a copy the caller owns,
// so the surface can be reused immediately.
func (s *Surface) Snapshot() ([]byte, error) {
	if s.img.Rect.Empty() {
		return nil, domain.RenderError("snapshot of empty surface", nil)
	}
	s.buf.Reset()
	if err := s.enc.Encode(&s.buf, s.img); err != nil {
		return nil, domain.RenderError("encode page image", err)
	}
	return bytes.Clone(s.buf.Bytes()), nil
}

// Reset drops the pixel and encode buffers.
func (s *Surface) Reset() {
	s.img = image.NewRGBA(image.Rectangle{})
	s.buf = bytes.Buffer{}
}
