package middleware

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope mirrors the handler package's response envelope so middleware
// rejections look the same on the wire as handler errors.
type errorEnvelope struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON-encoded error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: msg})
}
