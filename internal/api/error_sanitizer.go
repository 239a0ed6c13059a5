package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/httputil"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/logger"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/delivery"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/event"
)

// serviceError maps service-layer errors to HTTP responses. Known sentinels
// become 4xx with their own message; anything else is a sanitized 500 —
// database details, file paths and driver errors must never reach clients.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound),
		errors.Is(err, delivery.ErrEventNotFound),
		errors.Is(err, delivery.ErrParticipantNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, event.ErrArchived),
		errors.Is(err, event.ErrEmptyImport),
		errors.Is(err, event.ErrDuplicateCertID):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err.Error())
		httputil.Error(w, http.StatusInternalServerError, safeErrorMessage(err))
	}
}

// safeErrorMessage maps common internal error patterns to public-safe
// messages for 5xx responses.
func safeErrorMessage(err error) string {
	if err == nil {
		return "An internal error occurred"
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "query") ||
		strings.Contains(errStr, "scan") ||
		strings.Contains(errStr, "transaction") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	case strings.Contains(errStr, "json") ||
		strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "marshal") ||
		strings.Contains(errStr, "decode") ||
		strings.Contains(errStr, "parse"):
		return "Invalid request format"

	case strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access denied"):
		return "Access denied"

	default:
		return "An internal error occurred"
	}
}
