package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/observability"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "mistralai/pixtral-large-2411"

	// extractionPrompt asks for every piece of text in the file, with no commentary.
	extractionPrompt = "请提取这个文件中的所有文本内容，只返回提取的文本，不要添加任何解释或评论。"
)

// Config holds the hosted endpoint settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Retry   *RetryConfig
}

// Client handles communication with an OpenRouter-compatible chat completions API
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	retry      *RetryConfig
	httpClient *http.Client
	logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text, image or file)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *FileData `json:"file,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// FileData carries a whole document as a data URL.
type FileData struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new LLM client
func NewClient(cfg Config, logger *observability.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retry:      cfg.Retry,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.WithOperation("hosted_extract"),
	}
}

// Model returns the model requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// ExtractText sends file to the model and returns the text it extracted.
// Streamed chunks are forwarded to chunkCh when it is non-nil.
func (c *Client) ExtractText(ctx context.Context, file domain.FileInput, chunkCh chan<- string) (string, error) {
	if c.apiKey == "" {
		return "", domain.ConfigError("OPENROUTER_API_KEY is not set", nil)
	}

	req, err := c.buildRequest(file)
	if err != nil {
		return "", domain.APIError("Failed to build request", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/spherical/ocr-extractor")
		req.Header.Set("X-Title", "OCR Text Extractor")

		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", domain.APIError("Failed to extract text from the file", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.APIError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))), nil)
	}

	text, err := c.parseStream(resp.Body, chunkCh)
	if err != nil {
		return "", err
	}

	c.logger.WithContext(ctx).Info().
		Str("model", c.model).
		Str("file", file.Name).
		Int("chars", len(text)).
		Msg("hosted extraction complete")

	return text, nil
}

// buildRequest constructs the API request with the file attached as a data URL
func (c *Client) buildRequest(file domain.FileInput) (*Request, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	dataURL := "data:" + file.ContentType + ";base64," + base64.StdEncoding.EncodeToString(file.Data)

	attachment := ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}}
	if file.IsPDF() {
		name := file.Name
		if name == "" {
			name = "uploaded-file.pdf"
		}
		attachment = ContentPart{Type: "file", File: &FileData{Filename: name, FileData: dataURL}}
	}

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: extractionPrompt},
			attachment,
		},
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{msg},
		Stream:   true,
	}, nil
}

// parseStream aggregates the Server-Sent Events stream into the full text
func (c *Client) parseStream(body io.Reader, chunkCh chan<- string) (string, error) {
	var sb strings.Builder
	parser := NewStreamParser(body)
	for {
		chunk, err := parser.Next()
		if err != nil {
			return "", domain.APIError("Failed to parse stream", err)
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			if chunkCh != nil {
				chunkCh <- chunk.Content
			}
		}
		if chunk.Done {
			break
		}
	}
	return sb.String(), nil
}
