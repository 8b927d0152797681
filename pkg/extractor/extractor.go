// Package extractor is the public API of the OCR extractor. It wraps the
// local OCR pipeline and the hosted model behind one client.
package extractor

import (
	"context"

	"github.com/spherical/ocr-extractor/internal/app"
	"github.com/spherical/ocr-extractor/internal/config"
	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/observability"
	"github.com/spherical/ocr-extractor/internal/ocr/tesseract"
	"github.com/spherical/ocr-extractor/internal/pdf"
)

// Re-export types for the public API
type (
	Config       = config.Config
	Engine       = domain.Engine
	FileInput    = domain.FileInput
	DocumentText = domain.DocumentText
	PageResult   = domain.PageResult
	Result       = domain.Result
	StreamEvent  = domain.StreamEvent
	EventType    = domain.EventType
	ErrorType    = domain.ErrorType
)

// Engines and event types
const (
	EngineLocal  = domain.EngineLocal
	EngineHosted = domain.EngineHosted

	EventStart    = domain.EventStart
	EventProgress = domain.EventProgress
	EventChunk    = domain.EventChunk
	EventError    = domain.EventError
	EventComplete = domain.EventComplete
)

// Error sentinels for errors.Is
var (
	ErrSizeLimitExceeded   = domain.ErrSizeLimitExceeded
	ErrUnsupportedFileType = domain.ErrUnsupportedFileType
	ErrDocumentLoad        = domain.ErrDocumentLoad
	ErrRender              = domain.ErrRender
	ErrEngineInit          = domain.ErrEngineInit
	ErrRecognition         = domain.ErrRecognition
)

// KindOf returns the machine-readable kind of an extraction error.
func KindOf(err error) ErrorType {
	return domain.KindOf(err)
}

// Client is the main entry point for the extractor library
type Client struct {
	app *app.App
}

// NewClient creates a client from the defaults, a .env file and
// the environment. The hosted engine is enabled when OPENROUTER_API_KEY is set.
func NewClient() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

// DefaultConfig returns the default configuration for NewClientWithConfig.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("validate config", err)
	}

	a, err := app.New(cfg, tesseract.Factory(cfg.OCR.Languages...), observability.Nop())
	if err != nil {
		return nil, err
	}
	return &Client{app: a}, nil
}

// Engines lists the engines this client can run.
func (c *Client) Engines() []Engine {
	return c.app.Service.Engines()
}

// Extract recognizes the text of an in-memory image or PDF. progress, if
// non-nil, receives non-decreasing percentages ending at 100.
func (c *Client) Extract(ctx context.Context, engine Engine, file FileInput, progress func(int)) (*DocumentText, error) {
	return c.app.Service.Extract(ctx, engine, file, progress)
}

// ExtractFile reads path and extracts its text.
func (c *Client) ExtractFile(ctx context.Context, engine Engine, path string, progress func(int)) (*DocumentText, error) {
	file, err := pdf.NewValidator(c.app.Config.OCR.MaxFileBytes).ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Extract(ctx, engine, file, progress)
}

// Process extracts file in the background and streams events. The channel
// is closed after the EventComplete or EventError event.
func (c *Client) Process(ctx context.Context, engine Engine, file FileInput) <-chan StreamEvent {
	eventCh := make(chan StreamEvent, 100)

	go func() {
		defer close(eventCh)
		_, _ = c.app.Service.Process(ctx, engine, file, eventCh)
	}()

	return eventCh
}

// LatestText returns the most recently stored extraction result.
func (c *Client) LatestText(ctx context.Context) (string, error) {
	return c.app.Store.Get(ctx, domain.ExtractedTextKey)
}

// Close cleans up resources
func (c *Client) Close() error {
	return c.app.Close()
}
