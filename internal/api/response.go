package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/engine"
	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStatus writes an engine Status, choosing the HTTP code from its error.
func writeStatus(w http.ResponseWriter, okStatus int, st engine.Status) {
	code := okStatus
	switch {
	case st.Success:
	case errors.Is(st.Err, target.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(st.Err, engine.ErrAlreadyRunning), errors.Is(st.Err, engine.ErrNotRunning):
		code = http.StatusConflict
	default:
		code = http.StatusBadRequest
	}
	writeJSON(w, code, st)
}
