package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/extract"
	"github.com/spherical/ocr-extractor/internal/observability"
	"github.com/spherical/ocr-extractor/internal/ocr"
	"github.com/spherical/ocr-extractor/internal/pdf"
	"github.com/spherical/ocr-extractor/internal/store"
)

// multipartSlack covers form boundaries and headers on top of the file limit.
const multipartSlack = 1 << 20

// Handler serves the extraction API.
type Handler struct {
	service  *extract.Service
	store    store.Store
	jobs     *JobRegistry
	tracker  *ocr.Tracker
	logger   *observability.Logger
	maxBytes int64
	pdfErr   error
	baseCtx  context.Context
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "healthy",
		"service": "ocr-extractor",
		"jobs":    h.jobs.Len(),
	}
	if h.tracker != nil {
		resp["liveEngines"] = h.tracker.Live()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CapabilitiesDTO tells the front-end which inputs it may offer.
type CapabilitiesDTO struct {
	Engines      []domain.Engine `json:"engines"`
	PDF          bool            `json:"pdf"`
	PDFError     string          `json:"pdfError,omitempty"`
	MaxFileBytes int64           `json:"maxFileBytes"`
}

// Capabilities handles GET /api/v1/capabilities. When the PDF renderer
// failed its startup probe only image uploads are advertised.
func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	resp := CapabilitiesDTO{
		Engines:      h.service.Engines(),
		PDF:          h.pdfErr == nil,
		MaxFileBytes: h.maxBytes,
	}
	if h.pdfErr != nil {
		resp.PDFError = h.pdfErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Extract handles POST /api/v1/extract. The body is a multipart form with
// the upload in field "file"; the engine comes from ?engine= or the form.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, engine, err := h.readUpload(w, r)
	if err != nil {
		writeResult(w, "", err)
		return
	}

	h.logger.WithContext(ctx).
		WithFile(file.Name, file.ContentType, file.Size()).
		Info().
		Str("engine", string(engine)).
		Msg("Starting extraction")

	out, err := h.service.Extract(ctx, engine, file, nil)
	if err != nil {
		h.logger.WithContext(ctx).Warn().Err(err).Msg("Extraction failed")
		writeResult(w, "", err)
		return
	}
	writeResult(w, out.Text, nil)
}

// CreateJob handles POST /api/v1/jobs. The extraction runs in the
// background; progress is read from GET /jobs/{id} or its event stream.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	file, engine, err := h.readUpload(w, r)
	if err != nil {
		writeResult(w, "", err)
		return
	}

	job := h.jobs.Create(engine, file.Name)
	view := job.snapshot()

	ctx := observability.ContextWithRequestID(h.baseCtx, chimiddleware.GetReqID(r.Context()))
	go h.runJob(ctx, job, engine, file)

	w.Header().Set("Location", "/api/v1/jobs/"+view.ID)
	writeJSON(w, http.StatusAccepted, view)
}

func (h *Handler) runJob(ctx context.Context, job *Job, engine domain.Engine, file domain.FileInput) {
	logger := h.logger.WithContext(ctx).WithJob(job.snapshot().ID)

	eventCh := make(chan domain.StreamEvent, 64)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range eventCh {
			if ev.Type == domain.EventProgress {
				job.setPercent(ev.Percent)
			}
		}
	}()

	job.start()
	out, err := h.service.Process(ctx, engine, file, eventCh)
	close(eventCh)
	<-consumed

	if err != nil {
		logger.Warn().Err(err).Msg("Job failed")
		job.finish("", err)
		return
	}
	logger.Info().Int("pages", out.PageCount).Msg("Job completed")
	job.finish(out.Text, nil)
}

// GetJob handles GET /api/v1/jobs/{jobId}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Get(chi.URLParam(r, "jobId"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	writeJSON(w, http.StatusOK, job.snapshot())
}

// JobEvents handles GET /api/v1/jobs/{jobId}/events as a server-sent event
// stream. Each event carries the job view; the stream ends with a
// "completed" or "failed" event.
func (h *Handler) JobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobs.Get(chi.URLParam(r, "jobId"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}

	ew, ok := newEventWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	views := job.watch(r.Context())
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case view, ok := <-views:
			if !ok {
				return
			}
			event := "progress"
			if view.Status.Done() {
				event = string(view.Status)
			}
			if err := ew.Send(event, view); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := ew.Ping(); err != nil {
				return
			}
		}
	}
}

// TextDTO is the stored extraction result.
type TextDTO struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// GetText handles GET /api/v1/text.
func (h *Handler) GetText(w http.ResponseWriter, r *http.Request) {
	text, err := h.store.Get(r.Context(), domain.ExtractedTextKey)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no text extracted yet", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store read failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TextDTO{Key: domain.ExtractedTextKey, Text: text})
}

// TextEvents handles GET /api/v1/text/events. The current text, if any, is
// sent first, then one "change" event per write.
func (h *Handler) TextEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	changes, err := h.store.Subscribe(ctx, domain.ExtractedTextKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "subscribe failed", err.Error())
		return
	}

	ew, ok := newEventWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	if text, err := h.store.Get(ctx, domain.ExtractedTextKey); err == nil {
		if err := ew.Send("change", TextDTO{Key: domain.ExtractedTextKey, Text: text}); err != nil {
			return
		}
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := ew.Send("change", TextDTO{Key: c.Key, Text: c.Value}); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := ew.Ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readUpload reads the multipart upload and the requested engine.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (domain.FileInput, domain.Engine, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartSlack)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.FileInput{}, "", domain.SizeLimitExceeded(r.ContentLength, h.maxBytes)
		}
		return domain.FileInput{}, "", domain.ValidationError("invalid multipart form", err)
	}

	name := r.URL.Query().Get("engine")
	if name == "" {
		name = r.FormValue("engine")
	}
	engine, err := domain.ParseEngine(name)
	if err != nil {
		return domain.FileInput{}, "", err
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		return domain.FileInput{}, "", domain.ValidationError(`missing form field "file"`, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.FileInput{}, "", domain.IOError(fmt.Sprintf("read upload %s", header.Filename), err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = pdf.DetectContentType(header.Filename, data)
	}

	return domain.FileInput{Name: header.Filename, ContentType: contentType, Data: data}, engine, nil
}
