package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeSizeLimitExceeded   ErrorType = "size_limit_exceeded"
	ErrorTypeUnsupportedFileType ErrorType = "unsupported_file_type"
	ErrorTypeDocumentLoad        ErrorType = "document_load"
	ErrorTypeRender              ErrorType = "render"
	ErrorTypeEngineInit          ErrorType = "engine_init"
	ErrorTypeRecognition         ErrorType = "recognition"
	ErrorTypePageProcessing      ErrorType = "page_processing"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeAPI                 ErrorType = "api"
	ErrorTypeConfig              ErrorType = "config"
	ErrorTypeIO                  ErrorType = "io"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError of the same type, so callers can write
// errors.Is(err, domain.ErrSizeLimitExceeded).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Message == "" && t.Err == nil && e.Type == t.Type
	}
	return false
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrSizeLimitExceeded   = &DomainError{Type: ErrorTypeSizeLimitExceeded}
	ErrUnsupportedFileType = &DomainError{Type: ErrorTypeUnsupportedFileType}
	ErrDocumentLoad        = &DomainError{Type: ErrorTypeDocumentLoad}
	ErrRender              = &DomainError{Type: ErrorTypeRender}
	ErrEngineInit          = &DomainError{Type: ErrorTypeEngineInit}
	ErrRecognition         = &DomainError{Type: ErrorTypeRecognition}
)

// Common error constructors
func SizeLimitExceeded(size, limit int64) *DomainError {
	return NewError(ErrorTypeSizeLimitExceeded,
		fmt.Sprintf("file size %d bytes exceeds limit of %d bytes", size, limit), nil)
}

func UnsupportedFileType(contentType string) *DomainError {
	return NewError(ErrorTypeUnsupportedFileType,
		fmt.Sprintf("unsupported file type %q, expected an image or a PDF", contentType), nil)
}

func DocumentLoadError(message string, err error) *DomainError {
	return NewError(ErrorTypeDocumentLoad, message, err)
}

func RenderError(message string, err error) *DomainError {
	return NewError(ErrorTypeRender, message, err)
}

func EngineInitError(message string, err error) *DomainError {
	return NewError(ErrorTypeEngineInit, message, err)
}

func RecognitionError(message string, err error) *DomainError {
	return NewError(ErrorTypeRecognition, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// PageProcessingError wraps a render or recognition failure for one page.
type PageProcessingError struct {
	PageIndex int
	Err       error
}

func (e *PageProcessingError) Error() string {
	return fmt.Sprintf("[%s] page %d: %v", ErrorTypePageProcessing, e.PageIndex, e.Err)
}

func (e *PageProcessingError) Unwrap() error {
	return e.Err
}

// NewPageProcessingError tags err with the page it came from.
func NewPageProcessingError(pageIndex int, err error) *PageProcessingError {
	return &PageProcessingError{PageIndex: pageIndex, Err: err}
}

// KindOf returns the machine-readable kind of err. Page failures report
// page_processing even though they also unwrap to their cause.
func KindOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var pe *PageProcessingError
	if errors.As(err, &pe) {
		return ErrorTypePageProcessing
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ErrorTypeUnknown
}
