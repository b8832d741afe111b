// Package httpserver contains HTTP handlers and middleware.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code, codeStr, msg = http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
		var ve *usecase.ValidationError
		if details == nil && errors.As(err, &ve) {
			details = ve.Fields
		}
	case errors.Is(err, domain.ErrUnauthenticated):
		code, codeStr, msg = http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required"
	case errors.Is(err, domain.ErrNotFound):
		code, codeStr, msg = http.StatusNotFound, "NOT_FOUND", "interview not found"
	case errors.Is(err, domain.ErrConflict):
		code, codeStr, msg = http.StatusConflict, "CONFLICT", "evaluation already in progress"
	case errors.Is(err, domain.ErrRateLimited):
		code, codeStr, msg = http.StatusTooManyRequests, "RATE_LIMITED", "too many requests"
	}
	if code >= 500 && r != nil {
		LoggerFrom(r).Error("request failed", "error", err)
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
