package api

import (
	"encoding/json"
	"net/http"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// statusFor maps an extraction error to an HTTP status code.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrorTypeSizeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case domain.ErrorTypeUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case domain.ErrorTypeDocumentLoad, domain.ErrorTypePageProcessing, domain.ErrorTypeRender, domain.ErrorTypeRecognition:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeAPI:
		return http.StatusBadGateway
	case domain.ErrorTypeConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// writeResult writes the extract operation's {success, text} or
// {success:false, error, kind} body.
func writeResult(w http.ResponseWriter, text string, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, domain.NewResult(text, err))
}
