package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"komugigallery.com/gallery/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeError maps the service error taxonomy to a status code. Client errors
// carry their own message; upstream failures are logged under op and answered
// with fallback.
func writeError(w http.ResponseWriter, err error, op, fallback string) {
	kinds := []struct {
		kind   error
		status int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			writeJSON(w, k.status, map[string]string{"error": message(err, k.kind)})
			return
		}
	}

	log.Printf("%s error: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
}

// message drops the "<kind>: " prefix added when the service wrapped err.
func message(err, kind error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, kind.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}
