package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bbernstein/weathervis-go/internal/services/validation"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFormErrors reports rejected input as {"errors": {field: [messages]}}.
func writeFormErrors(w http.ResponseWriter, status int, errs validation.Errors) {
	writeJSON(w, status, map[string]validation.Errors{"errors": errs})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
