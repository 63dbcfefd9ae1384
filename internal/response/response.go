package response

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apperrors"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/logger"
)

type ErrorResponse struct {
	ErrorCode  apperrors.ErrorCode `json:"error_code" example:"rate_limit_exceeded"`
	Message    string              `json:"message" example:"message describing the error"`
	RetryAfter int                 `json:"retry_after,omitempty" example:"12"`
	Upstream   bool                `json:"upstream,omitempty"`
}

func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode apperrors.ErrorCode, message string) {
	writeError(w, r, statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
	})
}

// RespondWithRateLimit writes a 429 with a textual wait hint and a matching Retry-After header.
// retryAfter is rounded up to whole seconds (minimum 1).
func RespondWithRateLimit(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, r, http.StatusTooManyRequests, ErrorResponse{
		ErrorCode:  apperrors.ErrCodeRateLimitExceeded,
		Message:    fmt.Sprintf("Too many requests. Please wait %d seconds before retrying.", seconds),
		RetryAfter: seconds,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, errResponse ErrorResponse) {
	requestLogger := logger.ContextRequestLogger(r.Context())
	requestID := middleware.GetReqID(r.Context())

	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	requestLogger.LogAttrs(r.Context(), level, "request failed",
		slog.Int("status", statusCode),
		slog.String("error_code", string(errResponse.ErrorCode)),
		slog.String("error_message", errResponse.Message),
		slog.String("request_id", requestID),
	)

	dat, err := json.Marshal(errResponse)
	if err != nil {
		requestLogger.Error("error marshaling error response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":"internal_error","message":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(dat)
}

func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":"internal_error","message":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
