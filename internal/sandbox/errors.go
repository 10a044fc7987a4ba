package sandbox

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxBodySize is the maximum allowed JSON request body size (1 MB).
const maxBodySize = 1 << 20

// maxUploadSize bounds a multipart submission (10 MB).
const maxUploadSize = 10 << 20

// envelope is the {status, message?, data?} shape every response uses.
type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Token   string            `json:"token,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// page is the paginated payload of list endpoints.
type page struct {
	Data       any `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// writeError writes an error envelope with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Status: "error", Message: message})
}

// writeValidation writes a 400 envelope carrying per-field messages.
func writeValidation(w http.ResponseWriter, errs map[string]string) {
	writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "Validation failed", Errors: errs})
}

// writeData writes a success envelope around data.
func writeData(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, envelope{Status: "success", Message: message, Data: data})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v any) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}
