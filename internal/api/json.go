package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in errResponse.Code.
const (
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeInvalidSlug  = "invalid_slug"
	codeBadRequest   = "bad_request"
	codeInternal     = "internal"
)

type errResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response", slog.String("error", err.Error()))
	}
}

func writeErrorBody(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errResponse{Error: msg, Code: code})
}

// badRequest reports a missing or malformed request parameter.
func badRequest(w http.ResponseWriter, msg string) {
	writeErrorBody(w, http.StatusBadRequest, codeBadRequest, msg)
}
