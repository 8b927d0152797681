package domain

import (
	"context"
	"image"
)

// Recognizer is a started recognition engine bound to a fixed language spec.
type Recognizer interface {
	// Recognize returns the text found in an encoded image (PNG, JPEG, ...).
	Recognize(ctx context.Context, img []byte) (string, error)

	// Close terminates the engine and frees its resources.
	Close() error
}

// RecognizerFactory starts new recognition engines.
type RecognizerFactory func(ctx context.Context) (Recognizer, error)

// Document is a loaded PDF that can be rasterized page by page.
// Page numbers are 0-based, matching the underlying renderer.
type Document interface {
	NumPage() int
	Bound(pageNumber int) (image.Rectangle, error)
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// DocumentLoader opens a PDF from raw bytes.
type DocumentLoader interface {
	Load(data []byte) (Document, error)
}

// TextExtractor turns an uploaded file into text. Progress receives
// integer percentages and may be nil.
type TextExtractor interface {
	Extract(ctx context.Context, file FileInput, progress func(int)) (*DocumentText, error)
}
