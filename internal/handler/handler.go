// Package handler contains HTTP request handlers for the railway-safety
// API, translating JSON requests into engine.Engine calls and the stable
// error tags of the error-handling design into HTTP status codes.
package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
