package pipeline

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/observability"
	"github.com/spherical/ocr-extractor/internal/pdf"
)

// Options tune a Coordinator.
type Options struct {
	// Capacity bounds both the engine and the surface pool of each call.
	Capacity         int
	MaxBytes         int64
	Scale            float64
	MaxDimension     int
	ProgressInterval time.Duration
}

// DefaultOptions mirrors the defaults in config.
func DefaultOptions() Options {
	return Options{
		Capacity:         4,
		MaxBytes:         domain.DefaultMaxBytes,
		Scale:            1.5,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// Coordinator extracts text from PDFs and images with local OCR engines.
// It holds no per-call state; every Extract builds its own Session.
type Coordinator struct {
	loader     domain.DocumentLoader
	factory    domain.RecognizerFactory
	validator  *pdf.Validator
	rasterizer *pdf.Rasterizer
	opts       Options
	logger     *observability.Logger
}

// NewCoordinator wires a coordinator. A nil logger discards output.
func NewCoordinator(loader domain.DocumentLoader, factory domain.RecognizerFactory, opts Options, logger *observability.Logger) *Coordinator {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Coordinator{
		loader:     loader,
		factory:    factory,
		validator:  pdf.NewValidator(opts.MaxBytes),
		rasterizer: pdf.NewRasterizer(opts.Scale, opts.MaxDimension),
		opts:       opts,
		logger:     logger.WithOperation("local_extract"),
	}
}

// Extract validates file, then recognizes every page and returns the page
// texts joined in page order. The first page failure cancels pages that
// have not started; pages already recognizing finish first. Every engine
// started during the call is closed before Extract returns.
func (c *Coordinator) Extract(ctx context.Context, file domain.FileInput, progress func(int)) (*domain.DocumentText, error) {
	if err := c.validator.ValidateInput(file); err != nil {
		return nil, err
	}

	log := c.logger.WithContext(ctx).WithFile(file.Name, file.ContentType, file.Size())

	if file.IsImage() {
		return c.extractImage(ctx, file, progress, log)
	}

	doc, err := c.loader.Load(file.Data)
	if err != nil {
		log.Warn().Err(err).Msg("document load failed")
		return nil, err
	}
	defer doc.Close()

	return c.extractDocument(ctx, doc, progress, log)
}

func (c *Coordinator) extractDocument(ctx context.Context, doc domain.Document, progress func(int), log *observability.Logger) (*domain.DocumentText, error) {
	start := time.Now()
	pageCount := doc.NumPage()

	session := NewSession(c.opts.Capacity, c.factory)
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("session dispose failed")
		}
	}()

	tracker := NewProgress(pageCount, progress)
	sampleCtx, stopSampling := context.WithCancel(ctx)
	var sampler sync.WaitGroup
	sampler.Add(1)
	go func() {
		defer sampler.Done()
		tracker.Run(sampleCtx, c.opts.ProgressInterval)
	}()

	log.Info().Int("pages", pageCount).Int("capacity", c.opts.Capacity).Msg("extraction started")

	results := make([]domain.PageResult, pageCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= pageCount; i++ {
		pageIndex := i
		g.Go(func() error {
			defer tracker.OnPageComplete()

			res, err := processPage(gctx, session, c.rasterizer, doc, pageIndex)
			if err != nil {
				return err
			}
			results[pageIndex-1] = res
			log.Debug().Int("page", pageIndex).Int("chars", len(res.Text)).Msg("page recognized")
			return nil
		})
	}

	err := g.Wait()
	stopSampling()
	sampler.Wait()
	tracker.Flush()

	if err != nil {
		log.Error().Err(err).Str("kind", string(domain.KindOf(err))).Dur("elapsed", time.Since(start)).Msg("extraction failed")
		return nil, err
	}

	slices.SortFunc(results, func(a, b domain.PageResult) int {
		return a.PageIndex - b.PageIndex
	})

	log.Info().Int("pages", pageCount).Dur("elapsed", time.Since(start)).Msg("extraction complete")

	return &domain.DocumentText{
		Text:      joinPages(results),
		Pages:     results,
		PageCount: pageCount,
	}, nil
}

// extractImage recognizes a single image with a one-engine session.
func (c *Coordinator) extractImage(ctx context.Context, file domain.FileInput, progress func(int), log *observability.Logger) (*domain.DocumentText, error) {
	session := NewSession(1, c.factory)
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("session dispose failed")
		}
	}()

	tracker := NewProgress(1, progress)
	tracker.Flush()

	var text string
	err := session.Engines.Do(ctx, func(engine domain.Recognizer) error {
		var err error
		text, err = engine.Recognize(ctx, file.Data)
		return err
	})
	tracker.OnPageComplete()
	tracker.Flush()

	if err != nil {
		log.Error().Err(err).Msg("image recognition failed")
		return nil, err
	}

	page := domain.PageResult{PageIndex: 1, Text: cleanText(text)}
	log.Info().Int("chars", len(page.Text)).Msg("image recognized")

	return &domain.DocumentText{
		Text:      page.Text,
		Pages:     []domain.PageResult{page},
		PageCount: 1,
	}, nil
}
