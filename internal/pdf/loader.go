// Package pdf loads PDF documents with MuPDF and rasterizes their pages.
package pdf

import (
	"github.com/gen2brain/go-fitz"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// FitzLoader opens documents from memory with go-fitz. MuPDF renders glyph
// outlines itself and never fetches remote resources, so untrusted input
// triggers no network access.
type FitzLoader struct{}

// NewLoader returns a loader backed by MuPDF.
func NewLoader() *FitzLoader {
	return &FitzLoader{}
}

// Load opens a PDF from raw bytes.
func (FitzLoader) Load(data []byte) (domain.Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.DocumentLoadError("failed to open PDF", err)
	}
	if doc.NumPage() < 1 {
		doc.Close()
		return nil, domain.DocumentLoadError("PDF has no pages", nil)
	}
	return doc, nil
}

// PageCount opens data just long enough to count its pages.
func PageCount(loader domain.DocumentLoader, data []byte) (int, error) {
	doc, err := loader.Load(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
