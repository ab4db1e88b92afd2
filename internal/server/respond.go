package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/resilience"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			zap.L().Error("server: encode response", zap.Error(err))
		}
	}
}

// writeError maps the error taxonomy onto status codes: validation 400,
// not found 404, conflict 409, transient upstream failure 502, anything
// else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case resilience.IsValidation(err):
		status = http.StatusBadRequest
	case resilience.IsNotFound(err):
		status = http.StatusNotFound
	case resilience.IsConflict(err):
		status = http.StatusConflict
	case resilience.IsTransient(err):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody parses a JSON request body into dst. An empty body leaves
// dst at its zero value.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
