package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type messageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response. Exported so sibling API packages
// share one response shape.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a {"message": ...} error body.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, messageResponse{Message: msg})
}

// DecodeJSON decodes a single JSON value from the request body, rejecting
// unknown fields, trailing data and bodies over maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON value")
	}
	return nil
}
