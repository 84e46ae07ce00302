package transport

import (
	"encoding/json"
	"net/http"
)

// Envelope is the canonical response shape for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteDenial writes a coordination denial. Denials are normal outcomes,
// not transport failures, so the status stays 200.
func WriteDenial(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: false, Error: message})
}

// WriteError writes a failure envelope with the given HTTP status.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
