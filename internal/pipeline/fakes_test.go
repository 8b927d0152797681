package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/ocr"
)

// fakeDocument paints page n (1-based) with red channel n at the origin.
type fakeDocument struct {
	pages     int
	failPage  int // 1-based page whose draw fails; 0 for none
	closed    atomic.Bool
	drawCalls atomic.Int32
}

func (d *fakeDocument) NumPage() int { return d.pages }

func (d *fakeDocument) Bound(int) (image.Rectangle, error) {
	return image.Rect(0, 0, 40, 60), nil
}

func (d *fakeDocument) ImageDPI(page int, dpi float64) (*image.RGBA, error) {
	d.drawCalls.Add(1)
	if page+1 == d.failPage {
		return nil, errors.New("cannot decode page")
	}
	scale := dpi / 72
	img := image.NewRGBA(image.Rect(0, 0, int(40*scale), int(60*scale)))
	img.Set(0, 0, color.RGBA{R: uint8(page + 1), A: 0xff})
	return img, nil
}

func (d *fakeDocument) Close() error {
	d.closed.Store(true)
	return nil
}

type fakeLoader struct {
	doc   *fakeDocument
	err   error
	loads atomic.Int32
}

func (l *fakeLoader) Load([]byte) (domain.Document, error) {
	l.loads.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.doc, nil
}

// fakeEngines hands out recognizers that read the page marker back out of
// the rendered PNG. Later pages finish sooner so completion order is reversed.
type fakeEngines struct {
	tracker ocr.Tracker
	delay   func(page int) time.Duration
	initErr error

	mu      sync.Mutex
	running int
	peak    int
}

func (f *fakeEngines) factory() domain.RecognizerFactory {
	return f.tracker.Wrap(func(ctx context.Context) (domain.Recognizer, error) {
		if f.initErr != nil {
			return nil, f.initErr
		}
		return &fakeRecognizer{engines: f}, nil
	})
}

func (f *fakeEngines) enter() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running++
	if f.running > f.peak {
		f.peak = f.running
	}
}

func (f *fakeEngines) leave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running--
}

func (f *fakeEngines) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

type fakeRecognizer struct {
	engines *fakeEngines
	busy    atomic.Bool
}

func (r *fakeRecognizer) Recognize(ctx context.Context, data []byte) (string, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return "", errors.New("engine used concurrently")
	}
	defer r.busy.Store(false)

	r.engines.enter()
	defer r.engines.leave()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		// Raw image uploads are not PNG in every test.
		return "image text\n", nil
	}
	red, _, _, _ := img.At(0, 0).RGBA()
	page := int(red >> 8)

	if r.engines.delay != nil {
		time.Sleep(r.engines.delay(page))
	}
	return fmt.Sprintf("page %d\n", page), nil
}

func (r *fakeRecognizer) Close() error { return nil }

// progressRecorder collects reported percentages.
type progressRecorder struct {
	mu     sync.Mutex
	values []int
}

func (p *progressRecorder) report(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressRecorder) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func pdfInput(size int) domain.FileInput {
	return domain.FileInput{Name: "doc.pdf", ContentType: domain.ContentTypePDF, Data: make([]byte, size)}
}

func testOptions(capacity int) Options {
	opts := DefaultOptions()
	opts.Capacity = capacity
	opts.ProgressInterval = 2 * time.Millisecond
	return opts
}
