package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/imagehost"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/storage"
	"github.com/ryanbastic/go-sheetcms/internal/trigger"
)

const msgUnavailable = "service temporarily unavailable, retry"

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// classify maps a domain error onto a status code and a client-safe message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	case errors.Is(err, schema.ErrInvalidField),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidAccount),
		errors.Is(err, imagehost.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, errBadRequest),
		errors.Is(err, repository.ErrInvalidQuery),
		errors.Is(err, repository.ErrMissingID):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "record changed while it was being written, retry"
	case errors.Is(err, auth.ErrDuplicateEmail), errors.Is(err, auth.ErrDuplicateUsername):
		return http.StatusConflict, err.Error()
	case errors.Is(err, errNotFound),
		errors.Is(err, auth.ErrAccountNotFound),
		errors.Is(err, trigger.ErrPluginNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrWrongPassword),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrNotBearer):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrAccountDisabled), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, imagehost.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// report classifies err and logs it unless the caller is at fault.
func report(logger *slog.Logger, op string, err error) (int, string) {
	status, msg := classify(err)
	switch {
	case status == http.StatusServiceUnavailable:
		logger.Warn("store unavailable", "op", op, "error", err)
	case status >= 500:
		logger.Error("request failed", "op", op, "error", err)
	}
	return status, msg
}

// failure converts err into a huma error.
func failure(logger *slog.Logger, op string, err error) error {
	return huma.NewError(report(logger, op, err))
}

// fail is failure for plain net/http handlers.
func fail(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, msg := report(logger, op, err)
	writeError(w, status, msg)
}
