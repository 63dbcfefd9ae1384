package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

// context keys
type contextKey struct {
	name string
}

var (
	logAttrsKey      = contextKey{"log_attrs"}
	requestLoggerKey = contextKey{"request_logger"}
)

// ContextWithLogAttrs allows handlers to add attributes to the final request log.
//
// The attributes are appended to a shared slice created by the RequestLogging middleware,
// e.g. the cache status or the upstream status of a proxied request.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if attrPtr, ok := ctx.Value(logAttrsKey).(*[]slog.Attr); ok {
		*attrPtr = append(*attrPtr, attrs...)
		return ctx
	}
	// programming error - this should not happen
	slog.Warn("ContextWithLogAttrs called on context without shared log attributes slice")
	return ctx
}

// ContextLogAttrs returns the attributes added to the request so far.
func ContextLogAttrs(ctx context.Context) []slog.Attr {
	if attrPtr, ok := ctx.Value(logAttrsKey).(*[]slog.Attr); ok {
		return *attrPtr
	}
	return nil
}

// ContextRequestLogger retrieves the request-scoped logger from context.
//
// Middleware uses it for log entries written before the request finishes; the entries include the request_id.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(requestLoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ParseLogLevel converts a string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug // default to debug
	}
}

// InitLogger creates a logger with the specified log level.
// Uses colourised text on stderr for the dev environment, otherwise output is JSON on stdout.
func InitLogger(logLevel slog.Level, environment string) *slog.Logger {
	if environment == "dev" {
		return NewTextLogger(os.Stderr, logLevel)
	}
	return slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
}

// NewTextLogger returns a tint handler writing to w. The CLI uses it for stderr diagnostics.
func NewTextLogger(w io.Writer, logLevel slog.Level) *slog.Logger {
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		}),
	)
}

// Discard returns a logger that drops everything (used when no logger is configured).
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
Two types of logging are available to handlers running behind RequestLogging:

1. immediate logging (ContextRequestLogger):
   - use for events that occur during request processing

2. request completion logging (ContextWithLogAttrs):
   - use for attributes that should appear in the final HTTP request log
*/

// RequestLogging writes one line per request once the response is complete.
//
// peer is the socket address. A handler that resolves the caller behind a trusted proxy adds it as client.
// Responses relayed from the upstream (those carrying an upstream_status or cache attribute) are logged as
// "request proxied" and one level lower than errors the proxy produced itself: an upstream 4xx is routine
// traffic, a 429 or 413 raised here is not.
func RequestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip logging for health requests
			if strings.HasPrefix(r.URL.Path, "/health/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := middleware.GetReqID(r.Context())
			peer := r.RemoteAddr

			requestLogger := logger.With(
				slog.String("type", "middleware"),
				slog.String("request_id", requestID),
			)

			// shared slice for attributes that handlers can modify
			sharedAttrs := &[]slog.Attr{}

			ctx := context.WithValue(r.Context(), logAttrsKey, sharedAttrs)
			ctx = context.WithValue(ctx, requestLoggerKey, requestLogger)

			req := r.WithContext(ctx)

			// Wrap response writer to capture status
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, req)

			duration := time.Since(start)
			contextAttrs := ContextLogAttrs(req.Context())
			relayed := hasAttr(contextAttrs, "upstream_status") || hasAttr(contextAttrs, "cache")

			logAttrs := []slog.Attr{
				slog.String("type", "HTTP"),
				slog.Int("status", ww.Status()),
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("peer", peer),
			}
			if r.URL.RawQuery != "" {
				logAttrs = append(logAttrs, slog.Int("query_params", len(r.URL.Query())))
			}
			logAttrs = append(logAttrs, contextAttrs...)
			logAttrs = append(logAttrs,
				slog.Duration("duration", duration),
				slog.Int("bytes", ww.BytesWritten()),
			)

			msg := "request completed"
			if relayed {
				msg = "request proxied"
			}
			logger.LogAttrs(r.Context(), statusLevel(ww.Status(), relayed), msg, logAttrs...)
		})
	}
}

func statusLevel(status int, relayed bool) slog.Level {
	switch {
	case status >= 500 && relayed:
		return slog.LevelWarn
	case status >= 500:
		return slog.LevelError
	case status >= 400 && relayed:
		return slog.LevelInfo
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func hasAttr(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}
