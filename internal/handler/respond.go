package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/rentnest/internal/domain"
)

type errorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError translates domain errors to HTTP statuses. The body carries the
// stable error kind alongside the message so clients can branch on it without
// parsing text. Anything that is not a domain error is reported as a 500 with
// a generic message so internals never leak to clients.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	kind := ""

	if domain.IsDomain(err) {
		message = err.Error()
		kind = domain.Kind(err)
		switch kind {
		case "not_found":
			status = http.StatusNotFound
		case "forbidden":
			status = http.StatusForbidden
		case "invalid_state", "duplicate", "conflict":
			status = http.StatusConflict
		case "transaction_failed":
			status = http.StatusInternalServerError
			message = "operation could not be completed, please retry"
		}
	}

	if status == http.StatusInternalServerError {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Kind: kind, Error: message})
}
