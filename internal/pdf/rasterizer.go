package pdf

import (
	"context"
	"fmt"
	"math"

	"github.com/spherical/ocr-extractor/internal/domain"
)

const pointsPerInch = 72.0

// Rasterizer renders PDF pages to PNG at a fixed scale.
type Rasterizer struct {
	Scale        float64
	MaxDimension int
}

// NewRasterizer returns a rasterizer at scale (1.0 = 72 DPI). A positive
// maxDimension caps the longer side of the output.
func NewRasterizer(scale float64, maxDimension int) *Rasterizer {
	if scale <= 0 {
		scale = 1.5
	}
	return &Rasterizer{Scale: scale, MaxDimension: maxDimension}
}

// Viewport returns the pixel size of a page with the given bounds in points.
func (r *Rasterizer) Viewport(widthPt, heightPt int) (int, int) {
	w := int(math.Ceil(float64(widthPt) * r.Scale))
	h := int(math.Ceil(float64(heightPt) * r.Scale))
	if r.MaxDimension > 0 && (w > r.MaxDimension || h > r.MaxDimension) {
		f := float64(r.MaxDimension) / float64(max(w, h))
		w = max(1, int(float64(w)*f))
		h = max(1, int(float64(h)*f))
	}
	return w, h
}

// Render draws the page (1-based pageIndex) onto surface and returns a PNG
// snapshot. The caller must hold surface exclusively for the duration.
func (r *Rasterizer) Render(ctx context.Context, doc domain.Document, pageIndex int, surface *Surface) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 1 || pageIndex > doc.NumPage() {
		return nil, domain.RenderError(fmt.Sprintf("page %d out of range 1..%d", pageIndex, doc.NumPage()), nil)
	}

	bounds, err := doc.Bound(pageIndex - 1)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("load page %d", pageIndex), err)
	}
	if bounds.Empty() {
		return nil, domain.RenderError(fmt.Sprintf("page %d has empty bounds", pageIndex), nil)
	}

	w, h := r.Viewport(bounds.Dx(), bounds.Dy())
	surface.Resize(w, h)

	img, err := doc.ImageDPI(pageIndex-1, pointsPerInch*r.Scale)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("draw page %d", pageIndex), err)
	}
	surface.Draw(img)

	return surface.Snapshot()
}
