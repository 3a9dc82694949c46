package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"estate-listings/services"
	"estate-listings/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func badParam(name, format string, args ...any) error {
	return &services.ValidationError{Field: name, Message: fmt.Sprintf(format, args...)}
}

// trackingWriter remembers whether anything reached the client.
type trackingWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (t *trackingWriter) WriteHeader(code int) {
	if !t.wrote {
		t.status = code
	}
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	if !t.wrote {
		t.status = http.StatusOK
		t.wrote = true
	}
	return t.ResponseWriter.Write(b)
}
