package domain

import (
	"strings"
	"time"
)

// Content types accepted by the extractors.
const (
	ContentTypePDF   = "application/pdf"
	ImageTypePrefix  = "image/"
	DefaultMaxBytes  = 10 * 1024 * 1024
	PageSeparator    = "\n\n"
	ExtractedTextKey = "extractedText"
)

// Engine selects the extraction backend.
type Engine string

const (
	EngineLocal  Engine = "local"
	EngineHosted Engine = "hosted"
)

// ParseEngine maps a user-supplied engine name, defaulting to local.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(EngineLocal):
		return EngineLocal, nil
	case string(EngineHosted):
		return EngineHosted, nil
	default:
		return "", ValidationError("unknown engine "+s, nil)
	}
}

// FileInput is an uploaded file held in memory.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file size in bytes.
func (f FileInput) Size() int64 {
	return int64(len(f.Data))
}

// IsPDF reports whether the declared content type is a PDF.
func (f FileInput) IsPDF() bool {
	return normalizeContentType(f.ContentType) == ContentTypePDF
}

// IsImage reports whether the declared content type is any image type.
func (f FileInput) IsImage() bool {
	return strings.HasPrefix(normalizeContentType(f.ContentType), ImageTypePrefix)
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// PageResult is the recognized text of one page. PageIndex is 1-based.
type PageResult struct {
	PageIndex int    `json:"page_index"`
	Text      string `json:"text"`
}

// DocumentText is the final, page-ordered extraction result.
type DocumentText struct {
	Text      string       `json:"text"`
	Pages     []PageResult `json:"pages,omitempty"`
	PageCount int          `json:"page_count"`
}

// Progress counts settled page tasks.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent is floor(completed/total*100). An empty document is complete.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	return p.Completed * 100 / p.Total
}

// Result is the outcome reported to callers of the extract operation.
type Result struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// NewResult builds a Result from an extraction outcome.
func NewResult(text string, err error) Result {
	if err != nil {
		return Result{Success: false, Error: err.Error(), Kind: string(KindOf(err))}
	}
	return Result{Success: true, Text: text}
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventChunk    EventType = "chunk"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type      EventType   `json:"type"`
	Percent   int         `json:"percent"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
