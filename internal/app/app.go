// Package app builds the extraction components from configuration. The CLI,
// the HTTP server and the public facade share it.
package app

import (
	"time"

	"github.com/spherical/ocr-extractor/internal/config"
	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/extract"
	"github.com/spherical/ocr-extractor/internal/llm"
	"github.com/spherical/ocr-extractor/internal/observability"
	"github.com/spherical/ocr-extractor/internal/ocr"
	"github.com/spherical/ocr-extractor/internal/pdf"
	"github.com/spherical/ocr-extractor/internal/pipeline"
	"github.com/spherical/ocr-extractor/internal/store"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Tracker *ocr.Tracker
	Loader  domain.DocumentLoader
	Local   *pipeline.Coordinator
	Hosted  *extract.HostedExtractor // nil without an API key
	Store   store.Store
	Service *extract.Service
}

// Option customizes New.
type Option func(*options)

type options struct {
	loader domain.DocumentLoader
	store  store.Store
}

// WithLoader replaces the MuPDF loader.
func WithLoader(l domain.DocumentLoader) Option {
	return func(o *options) { o.loader = l }
}

// WithStore uses st instead of opening the configured driver.
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

// New wires every component. factory starts the recognition engines; it is
// passed in so that only the binaries link Tesseract.
func New(cfg *config.Config, factory domain.RecognizerFactory, logger *observability.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = pdf.NewLoader()
	}

	st := o.store
	if st == nil {
		var err error
		st, err = store.New(cfg.Store, logger)
		if err != nil {
			return nil, domain.ConfigError("open result store", err)
		}
	}

	tracker := &ocr.Tracker{}
	local := pipeline.NewCoordinator(o.loader, tracker.Wrap(factory), pipeline.Options{
		Capacity:         cfg.OCR.PoolSize,
		MaxBytes:         cfg.OCR.MaxFileBytes,
		Scale:            cfg.Render.Scale,
		MaxDimension:     cfg.Render.MaxDimension,
		ProgressInterval: cfg.OCR.ProgressInterval,
	}, logger)

	var hosted *extract.HostedExtractor
	if cfg.HostedEnabled() {
		client := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout,
			Retry: &llm.RetryConfig{
				MaxRetries:     cfg.LLM.MaxRetries,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
			},
		}, logger)
		hosted = extract.NewHostedExtractor(client, o.loader, extract.HostedLimits{
			MaxBytes:    cfg.OCR.MaxFileBytes,
			MaxPDFPages: cfg.LLM.MaxPDFPages,
		})
	}

	logger.Debug().
		Int("pool_size", cfg.OCR.PoolSize).
		Str("languages", cfg.LanguageSpec()).
		Str("store", cfg.Store.Driver).
		Bool("hosted", hosted != nil).
		Msg("components ready")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Tracker: tracker,
		Loader:  o.loader,
		Local:   local,
		Hosted:  hosted,
		Store:   st,
		Service: extract.NewService(local, hosted, st, logger),
	}, nil
}

// ProbePDF reports whether PDFs can be rendered on this host.
func (a *App) ProbePDF() error {
	return pdf.Probe(a.Loader)
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
