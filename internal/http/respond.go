package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/core"
	"huishoudboekje/internal/services"
	"huishoudboekje/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses: validation problems are
// 422, missing rows 404, unconfigured dependencies 503, a misbehaving AI
// upstream 502, everything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrInvalidMonthKey),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrUnknownSubcategory),
		errors.Is(err, core.ErrHalfCategorized),
		errors.Is(err, core.ErrInvalidDate):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, categorize.ErrAINotConfigured),
		errors.Is(err, services.ErrQueueUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, categorize.ErrInvalidAIResponse):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "status", status, "error", err)
	} else {
		slog.WarnContext(r.Context(), "Request rejected",
			"method", r.Method, "url", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}
