package pdf

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// Validator provides input validation for uploaded files
type Validator struct {
	MaxBytes int64
}

// NewValidator creates a new validator instance. A non-positive limit
// falls back to domain.DefaultMaxBytes.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxBytes
	}
	return &Validator{MaxBytes: maxBytes}
}

// ValidateInput rejects anything that is neither an image nor a PDF, then
// anything above the size limit. Nothing is decoded.
func (v *Validator) ValidateInput(f domain.FileInput) error {
	if !f.IsPDF() && !f.IsImage() {
		return domain.UnsupportedFileType(f.ContentType)
	}
	if f.Size() > v.MaxBytes {
		return domain.SizeLimitExceeded(f.Size(), v.MaxBytes)
	}
	if f.Size() == 0 {
		return domain.ValidationError("file is empty", nil)
	}
	return nil
}

// ValidateFilePath validates that a path exists and points to a regular file
func (v *Validator) ValidateFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	// Checked here too so a huge file is never read into memory.
	if info.Size() > v.MaxBytes {
		return domain.SizeLimitExceeded(info.Size(), v.MaxBytes)
	}

	return nil
}

// ReadFile validates path and loads it as a FileInput with a detected content type.
func (v *Validator) ReadFile(path string) (domain.FileInput, error) {
	if err := v.ValidateFilePath(path); err != nil {
		return domain.FileInput{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FileInput{}, domain.IOError("read "+path, err)
	}

	name := filepath.Base(path)
	return domain.FileInput{
		Name:        name,
		ContentType: DetectContentType(name, data),
		Data:        data,
	}, nil
}

// DetectContentType sniffs data and falls back to the file extension.
func DetectContentType(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "text/plain") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return sniffed
}
