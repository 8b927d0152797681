package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/pdf"
	"github.com/spherical/ocr-extractor/internal/pool"
)

// processPage renders one page and recognizes it. At most one pooled
// resource is held at a time: the surface is released once the snapshot is
// taken, before an engine is requested.
func processPage(ctx context.Context, s *Session, r *pdf.Rasterizer, doc domain.Document, pageIndex int) (domain.PageResult, error) {
	var img []byte
	err := s.Surfaces.Do(ctx, func(surface *pdf.Surface) error {
		var err error
		img, err = r.Render(ctx, doc, pageIndex, surface)
		return err
	})
	if err != nil {
		return domain.PageResult{}, pageError(ctx, pageIndex, err)
	}

	var text string
	err = s.Engines.Do(ctx, func(engine domain.Recognizer) error {
		var err error
		text, err = engine.Recognize(ctx, img)
		return err
	})
	if err != nil {
		return domain.PageResult{}, pageError(ctx, pageIndex, err)
	}

	return domain.PageResult{PageIndex: pageIndex, Text: cleanText(text)}, nil
}

// pageError tags render and recognition failures with the page index.
// Cancellation and engine start-up failures belong to the whole call and
// pass through unchanged.
func pageError(ctx context.Context, pageIndex int, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	if errors.Is(err, pool.ErrClosed) {
		return err
	}
	switch domain.KindOf(err) {
	case domain.ErrorTypeEngineInit:
		return err
	case domain.ErrorTypeRender, domain.ErrorTypeRecognition:
		return domain.NewPageProcessingError(pageIndex, err)
	default:
		return domain.NewPageProcessingError(pageIndex, domain.RecognitionError("recognize page", err))
	}
}

// cleanText drops the trailing newlines Tesseract appends to every page.
func cleanText(s string) string {
	return strings.TrimRight(s, " \t\r\n\f")
}

// joinPages concatenates page texts in the order given.
func joinPages(pages []domain.PageResult) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, domain.PageSeparator)
}
