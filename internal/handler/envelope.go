// Package handler implements the HTTP façade: thin JSON request/response
// translation over the core ingestion/retrieval/evaluation packages.
package handler

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform JSON response shape for every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, envelope{Success: false, Error: err.Error()})
}
