package extract

import (
	"context"
	"fmt"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/pdf"
)

// LLMClient defines the interface for hosted text extraction
type LLMClient interface {
	ExtractText(ctx context.Context, file domain.FileInput, chunkCh chan<- string) (string, error)
}

// HostedLimits bound what a single hosted request may carry.
type HostedLimits struct {
	MaxBytes    int64
	MaxPDFPages int
}

// HostedExtractor sends the whole file to a multimodal model.
type HostedExtractor struct {
	client    LLMClient
	loader    domain.DocumentLoader
	validator *pdf.Validator
	limits    HostedLimits
}

// NewHostedExtractor wires a hosted extractor. loader is only used to count
// PDF pages before upload.
func NewHostedExtractor(client LLMClient, loader domain.DocumentLoader, limits HostedLimits) *HostedExtractor {
	if limits.MaxPDFPages < 1 {
		limits.MaxPDFPages = 64
	}
	return &HostedExtractor{
		client:    client,
		loader:    loader,
		validator: pdf.NewValidator(limits.MaxBytes),
		limits:    limits,
	}
}

// Extract implements domain.TextExtractor.
func (h *HostedExtractor) Extract(ctx context.Context, file domain.FileInput, progress func(int)) (*domain.DocumentText, error) {
	return h.ExtractStream(ctx, file, progress, nil)
}

// ExtractStream is Extract with streamed text chunks forwarded to chunkCh.
func (h *HostedExtractor) ExtractStream(ctx context.Context, file domain.FileInput, progress func(int), chunkCh chan<- string) (*domain.DocumentText, error) {
	if err := h.validator.ValidateInput(file); err != nil {
		return nil, err
	}

	pages := 1
	if file.IsPDF() {
		n, err := pdf.PageCount(h.loader, file.Data)
		if err != nil {
			return nil, err
		}
		if n > h.limits.MaxPDFPages {
			return nil, domain.ValidationError(
				fmt.Sprintf("PDF has %d pages, hosted extraction accepts at most %d", n, h.limits.MaxPDFPages), nil)
		}
		pages = n
	}

	report(progress, 0)
	text, err := h.client.ExtractText(ctx, file, chunkCh)
	if err != nil {
		return nil, err
	}
	report(progress, 100)

	return &domain.DocumentText{Text: text, PageCount: pages}, nil
}

func report(progress func(int), pct int) {
	if progress != nil {
		progress(pct)
	}
}
