// Package tesseract implements domain.Recognizer on top of the gosseract
// client. Each Engine owns one Tesseract instance and must not be shared
// between goroutines.
package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// Engine is a started Tesseract instance bound to a fixed language list.
type Engine struct {
	client *gosseract.Client
}

// NewEngine starts Tesseract with the given languages, e.g. "chi_sim", "eng".
// It runs one warm-up recognition so a missing tessdata file surfaces here
// rather than on the first page.
func NewEngine(ctx context.Context, languages ...string) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, domain.EngineInitError("set languages "+strings.Join(languages, "+"), err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, domain.EngineInitError("set page segmentation mode", err)
	}

	if err := client.SetImageFromBytes(blankPage); err != nil {
		client.Close()
		return nil, domain.EngineInitError("load warm-up image", err)
	}
	if _, err := client.Text(); err != nil {
		client.Close()
		return nil, domain.EngineInitError("initialize tesseract", err)
	}

	return &Engine{client: client}, nil
}

// Factory returns a domain.RecognizerFactory starting engines for languages.
func Factory(languages ...string) domain.RecognizerFactory {
	return func(ctx context.Context) (domain.Recognizer, error) {
		return NewEngine(ctx, languages...)
	}
}

// Recognize runs OCR over an encoded image. A recognition that has started
// runs to completion even if ctx is cancelled meanwhile.
func (e *Engine) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img) == 0 {
		return "", domain.RecognitionError("empty image", nil)
	}

	if err := e.client.SetImageFromBytes(img); err != nil {
		return "", domain.RecognitionError("set image", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", domain.RecognitionError("recognize text", err)
	}
	return text, nil
}

// Close terminates the Tesseract instance.
func (e *Engine) Close() error {
	return e.client.Close()
}

var blankPage = func() []byte {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(color.White.Y >> 8)
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}()
