package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/extract"
	"github.com/spherical/ocr-extractor/internal/ocr"
	"github.com/spherical/ocr-extractor/internal/store"
)

type fakeExtractor struct {
	text  string
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, file domain.FileInput, progress func(int)) (*domain.DocumentText, error) {
	f.calls.Add(1)
	if progress != nil {
		progress(0)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		progress(50)
		progress(100)
	}
	return &domain.DocumentText{Text: f.text, PageCount: 1}, nil
}

type testServer struct {
	handler http.Handler
	store   *store.MemoryStore
	local   *fakeExtractor
	jobs    *JobRegistry
}

func newTestServer(t *testing.T, local *fakeExtractor, opts ...func(*Deps)) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	deps := Deps{
		Service:      extract.NewService(local, nil, st, nil),
		Store:        st,
		Jobs:         NewJobRegistry(time.Hour),
		Tracker:      &ocr.Tracker{},
		MaxFileBytes: 1024,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testServer{
		handler: NewRouter(deps),
		store:   st,
		local:   local,
		jobs:    deps.Jobs,
	}
}

func uploadRequest(t *testing.T, target, name, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) domain.Result {
	t.Helper()
	var res domain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 0, body["liveEngines"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestExtract_Success(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{text: "你好 world"})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/extract", "scan.png", "image/png", []byte("png")))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "你好 world", res.Text)
	assert.Empty(t, res.Error)

	stored, err := ts.store.Get(context.Background(), domain.ExtractedTextKey)
	require.NoError(t, err)
	assert.Equal(t, "你好 world", stored)
}

func TestExtract_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   domain.ErrorType
	}{
		{"size", domain.SizeLimitExceeded(2048, 1024), http.StatusRequestEntityTooLarge, domain.ErrorTypeSizeLimitExceeded},
		{"unsupported", domain.UnsupportedFileType("text/plain"), http.StatusUnsupportedMediaType, domain.ErrorTypeUnsupportedFileType},
		{"document load", domain.DocumentLoadError("bad pdf", nil), http.StatusUnprocessableEntity, domain.ErrorTypeDocumentLoad},
		{"page", domain.NewPageProcessingError(2, domain.RenderError("draw", nil)), http.StatusUnprocessableEntity, domain.ErrorTypePageProcessing},
		{"engine init", domain.EngineInitError("no tessdata", nil), http.StatusInternalServerError, domain.ErrorTypeEngineInit},
		{"api", domain.APIError("upstream", nil), http.StatusBadGateway, domain.ErrorTypeAPI},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, domain.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeExtractor{err: tt.err})

			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/extract", "doc.pdf", "application/pdf", []byte("%PDF")))

			assert.Equal(t, tt.status, rec.Code)
			res := decodeResult(t, rec)
			assert.False(t, res.Success)
			assert.Equal(t, string(tt.kind), res.Kind)
			assert.Equal(t, tt.err.Error(), res.Error)

			_, err := ts.store.Get(context.Background(), domain.ExtractedTextKey)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestExtract_MissingFile(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("engine", "local"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.ErrorTypeValidation), decodeResult(t, rec).Kind)
	assert.Zero(t, ts.local.calls.Load())
}

func TestExtract_EngineSelection(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{text: "x"})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/extract?engine=ocr", "a.png", "image/png", []byte("png")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/extract?engine=hosted", "a.png", "image/png", []byte("png")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(domain.ErrorTypeConfig), decodeResult(t, rec).Kind)

	assert.Zero(t, ts.local.calls.Load())
}

func TestExtract_DetectsMissingContentType(t *testing.T) {
	local := &fakeExtractor{text: "ok"}
	var seen string
	ts := newTestServer(t, local)
	ts.handler = NewRouter(Deps{
		Service: extract.NewService(recordingExtractor{local, &seen}, nil, ts.store, nil),
		Store:   ts.store,
	})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/extract", "doc.pdf", "", []byte("%PDF-1.4\n")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ContentTypePDF, seen)
}

type recordingExtractor struct {
	next *fakeExtractor
	seen *string
}

func (r recordingExtractor) Extract(ctx context.Context, file domain.FileInput, progress func(int)) (*domain.DocumentText, error) {
	*r.seen = file.ContentType
	return r.next.Extract(ctx, file, progress)
}

func TestCapabilities(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", nil))

	var caps CapabilitiesDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.Equal(t, []domain.Engine{domain.EngineLocal}, caps.Engines)
	assert.True(t, caps.PDF)
	assert.EqualValues(t, 1024, caps.MaxFileBytes)

	fallback := newTestServer(t, &fakeExtractor{}, func(d *Deps) {
		d.PDFError = domain.DocumentLoadError("renderer unavailable", nil)
	})
	rec = httptest.NewRecorder()
	fallback.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", nil))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.False(t, caps.PDF)
	assert.Contains(t, caps.PDFError, "renderer unavailable")
}

func TestJobs_Lifecycle(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{text: "job text"})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/jobs", "a.png", "image/png", []byte("png")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created JobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/v1/jobs/"+created.ID, rec.Header().Get("Location"))

	var view JobView
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		view = JobView{}
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			return false
		}
		return view.Status.Done()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, JobStatusCompleted, view.Status)
	assert.Equal(t, 100, view.Percent)
	require.NotNil(t, view.Result)
	assert.True(t, view.Result.Success)
	assert.Equal(t, "job text", view.Result.Text)

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID+"/events", nil))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: completed\n")
}

func TestJobs_NotFound(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})

	for _, path := range []string{"/api/v1/jobs/nope", "/api/v1/jobs/nope/events"} {
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestJobs_EventStream(t *testing.T) {
	local := &fakeExtractor{text: "streamed", gate: make(chan struct{})}
	ts := newTestServer(t, local)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, uploadRequest(t, "/api/v1/jobs", "a.png", "image/png", []byte("png")))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created JobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	resp, err := http.Get(srv.URL + "/api/v1/jobs/" + created.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(resp, "completed")
	close(local.gate)

	var got []string
	select {
	case got = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not complete")
	}

	require.NotEmpty(t, got)
	assert.Equal(t, "completed", got[len(got)-1])
	for _, e := range got[:len(got)-1] {
		assert.Equal(t, "progress", e)
	}
}

// readEvents collects event names until last is seen or the stream ends.
func readEvents(resp *http.Response, last string) <-chan []string {
	out := make(chan []string, 1)
	go func() {
		var names []string
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			name, ok := strings.CutPrefix(sc.Text(), "event: ")
			if !ok {
				continue
			}
			names = append(names, name)
			if name == last {
				break
			}
		}
		out <- names
	}()
	return out
}

func TestText(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/text", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, ts.store.Set(context.Background(), domain.ExtractedTextKey, "stored"))

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/text", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body TextDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TextDTO{Key: domain.ExtractedTextKey, Text: "stored"}, body)
}

func TestTextEvents(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	require.NoError(t, ts.store.Set(context.Background(), domain.ExtractedTextKey, "first"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/text/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data := make(chan TextDTO, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			payload, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var dto TextDTO
			if json.Unmarshal([]byte(payload), &dto) == nil {
				data <- dto
			}
		}
		close(data)
	}()

	next := func() TextDTO {
		select {
		case dto := <-data:
			return dto
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
			return TextDTO{}
		}
	}

	assert.Equal(t, "first", next().Text)

	require.NoError(t, ts.store.Set(context.Background(), domain.ExtractedTextKey, "second"))
	assert.Equal(t, "second", next().Text)
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(t, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/extract", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
