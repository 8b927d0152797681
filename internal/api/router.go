// Package api exposes extraction, async jobs and the stored result over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/extract"
	"github.com/spherical/ocr-extractor/internal/observability"
	"github.com/spherical/ocr-extractor/internal/ocr"
	"github.com/spherical/ocr-extractor/internal/store"
)

// Deps holds everything the router needs.
type Deps struct {
	Service *extract.Service
	Store   store.Store
	Jobs    *JobRegistry
	Tracker *ocr.Tracker // optional, reported on /health
	Logger  *observability.Logger

	MaxFileBytes   int64
	AllowedOrigins []string

	// PDFError is the startup probe failure, nil when PDFs can be rendered.
	PDFError error

	// BaseContext outlives requests; async jobs run under it.
	BaseContext context.Context
}

// NewRouter creates the API router with all routes configured.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = observability.Nop()
	}
	if deps.Jobs == nil {
		deps.Jobs = NewJobRegistry(0)
	}
	if deps.MaxFileBytes <= 0 {
		deps.MaxFileBytes = domain.DefaultMaxBytes
	}
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	h := &Handler{
		service:  deps.Service,
		store:    deps.Store,
		jobs:     deps.Jobs,
		tracker:  deps.Tracker,
		logger:   deps.Logger.WithOperation("api"),
		maxBytes: deps.MaxFileBytes,
		pdfErr:   deps.PDFError,
		baseCtx:  deps.BaseContext,
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestContext)
	r.Use(requestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/capabilities", h.Capabilities)
		r.Post("/extract", h.Extract)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/{jobId}", h.GetJob)
			r.Get("/{jobId}/events", h.JobEvents)
		})

		r.Route("/text", func(r chi.Router) {
			r.Get("/", h.GetText)
			r.Get("/events", h.TextEvents)
		})
	})

	return r
}
