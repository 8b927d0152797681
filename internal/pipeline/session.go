// Package pipeline runs page-parallel OCR over PDF documents.
package pipeline

import (
	"context"
	"errors"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/pdf"
	"github.com/spherical/ocr-extractor/internal/pool"
)

// Session owns the engines and surfaces of one extraction call. Nothing in
// a Session is shared with other calls.
type Session struct {
	Engines  *pool.Pool[domain.Recognizer]
	Surfaces *pool.Pool[*pdf.Surface]
}

// NewSession creates empty engine and surface pools of the given capacity.
// Engines and surfaces are only created when first acquired.
func NewSession(capacity int, factory domain.RecognizerFactory) *Session {
	return &Session{
		Engines: pool.New(capacity, pool.Factory[domain.Recognizer](factory), func(r domain.Recognizer) error {
			return r.Close()
		}),
		Surfaces: pool.New(capacity, func(context.Context) (*pdf.Surface, error) {
			return pdf.NewSurface(), nil
		}, func(s *pdf.Surface) error {
			s.Reset()
			return nil
		}),
	}
}

// Close disposes every engine and surface. It is safe to call more than once.
func (s *Session) Close() error {
	return errors.Join(s.Engines.DisposeAll(), s.Surfaces.DisposeAll())
}
