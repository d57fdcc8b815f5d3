package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError mirrors the API's {error, code} body for requests rejected before a handler runs.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
